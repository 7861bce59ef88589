package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/brogergvhs/noveld/internal/downloader"
	"github.com/brogergvhs/noveld/internal/fetch"
	"github.com/brogergvhs/noveld/internal/providers"

	"github.com/PuerkitoBio/goquery"
)

var errNoChapters = errors.New("no chapters found on the page")

func fetchDocument(ctx context.Context, f fetch.Fetcher, pageURL string) (*goquery.Document, error) {
	resp, err := f.Fetch(ctx, pageURL, fetch.Options{})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// resolveJob reads a book page and lists its chapters. A chapter URL is
// followed to the book it belongs to; a page without a chapter list is read
// through the forum listing endpoint.
func resolveJob(ctx context.Context, f fetch.Fetcher, site providers.Site, pageURL string) (downloader.Job, error) {
	doc, err := fetchDocument(ctx, f, pageURL)
	if err != nil {
		return downloader.Job{}, err
	}

	if site.IsChapterURL(pageURL) {
		bookURL, ok := site.BookPageURL(doc, pageURL)
		if !ok {
			return downloader.Job{}, fmt.Errorf("%s is a chapter page without a link to its book; use `noveld chapter`", pageURL)
		}

		pageURL = bookURL
		if doc, err = fetchDocument(ctx, f, pageURL); err != nil {
			return downloader.Job{}, err
		}
	}

	meta := site.ParseBook(doc, pageURL)
	tasks := site.ListTasks(doc, pageURL)

	if len(tasks) == 0 {
		if listURL, ok := site.ForumListURL(doc, pageURL); ok {
			resp, err := f.Fetch(ctx, listURL, fetch.Options{Accept: "application/json"})
			if err != nil {
				return downloader.Job{}, fmt.Errorf("fetch chapter list: %w", err)
			}
			if tasks, err = site.ParseForumList(resp.Body, pageURL); err != nil {
				return downloader.Job{}, err
			}
		}
	}

	if len(tasks) == 0 {
		return downloader.Job{}, errNoChapters
	}

	return downloader.Job{
		BookID:   site.BookID(pageURL),
		Tasks:    tasks,
		Intro:    meta.Intro,
		CoverURL: meta.CoverURL,
		Title:    meta.BookName,
		RawTitle: meta.RawBookName,
		Author:   meta.Author,
	}, nil
}
