package providers

import (
	"strconv"
	"strings"

	"github.com/brogergvhs/noveld/internal/book"
)

// Filter selects tasks by 1-based position. A range ("5-12") wins over a
// list ("1,3,5"); with neither, every task is returned. Selected tasks keep
// their original Index.
func Filter(all []book.Task, rng, list string) []book.Task {
	if rng != "" {
		return FilterRange(all, rng)
	}
	if list != "" {
		return FilterList(all, list)
	}

	return all
}

func FilterRange(all []book.Task, rng string) []book.Task {
	parts := strings.Split(rng, "-")
	if len(parts) != 2 {
		return nil
	}

	start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))

	if err1 != nil || err2 != nil {
		return nil
	}
	if start <= 0 || end <= 0 || start > end || end > len(all) {
		return nil
	}

	return all[start-1 : end]
}

func FilterList(all []book.Task, list string) []book.Task {
	var out []book.Task
	seen := map[int]bool{}

	for p := range strings.SplitSeq(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		idx, err := strconv.Atoi(p)
		if err != nil || idx <= 0 || idx > len(all) || seen[idx] {
			continue
		}

		seen[idx] = true
		out = append(out, all[idx-1])
	}

	return out
}
