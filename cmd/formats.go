package cmd

import (
	"fmt"
	"os"

	"github.com/brogergvhs/noveld/internal/export"

	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"
)

// defaultFormats are written when no format is configured and there is no
// terminal to ask.
var defaultFormats = []export.Format{export.TXT, export.EPUB}

type formatChoice struct {
	Label   string
	Formats []export.Format
}

var formatChoices = []formatChoice{
	{"TXT", []export.Format{export.TXT}},
	{"EPUB", []export.Format{export.EPUB}},
	{"HTML (single file)", []export.Format{export.HTML}},
	{"Markdown", []export.Format{export.Markdown}},
	{"All of the above", export.All},
}

func chooseFormats() ([]export.Format, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return defaultFormats, nil
	}

	labels := make([]string, len(formatChoices))
	for i, c := range formatChoices {
		labels[i] = c.Label
	}

	prompt := promptui.Select{
		Label: "Download finished, choose the output format",
		Items: labels,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("selection cancelled")
	}
	return formatChoices[idx].Formats, nil
}
