package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rodaine/table"
	"golang.org/x/net/html"

	"github.com/romangod6/html-audit/internal/crawler"
	"github.com/romangod6/html-audit/internal/models"
)

// Sitemap inspector: reports what a fetch run would see before running it.
type CLI struct {
	URI     string `arg:"" help:"Sitemap URL or local file."`
	LastMod string `help:"Threshold date used to count modified entries." name:"lastmod"`
	Samples int    `help:"Number of pages to fetch and summarize." default:"3"`
}

type stats struct {
	total       int
	withLastMod int
	modified    int
	oldest      *time.Time
	newest      *time.Time
	hosts       map[string]int
}

func main() {
	var cli CLI
	kong.Parse(&cli, kong.Description("Inspect a sitemap and sample its pages."))

	if err := run(context.Background(), cli, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cli CLI, out io.Writer) error {
	var threshold *time.Time
	if cli.LastMod != "" {
		t, err := crawler.ParseTimestamp(cli.LastMod)
		if err != nil {
			return err
		}
		threshold = &t
	}

	client := crawler.NewHTTPClient(30 * time.Second)
	body, err := crawler.NewSource(client, "").Fetch(ctx, cli.URI)
	if err != nil {
		return fmt.Errorf("error fetching sitemap: %w", err)
	}
	defer body.Close()

	s := stats{hosts: make(map[string]int)}
	var samples []models.SitemapEntry

	parser := crawler.NewParser(body, threshold)
	for {
		entry, err := parser.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		s.add(entry)
		if len(samples) < cli.Samples {
			samples = append(samples, entry)
		}
	}

	fmt.Fprintf(out, "Total URLs found: %d\n", s.total)
	fmt.Fprintf(out, "With lastmod: %d\n", s.withLastMod)
	if threshold != nil {
		fmt.Fprintf(out, "Modified since %s: %d\n", threshold.Format("2006-01-02"), s.modified)
	}
	if s.oldest != nil {
		fmt.Fprintf(out, "Lastmod range: %s .. %s\n", s.oldest.Format(time.RFC3339), s.newest.Format(time.RFC3339))
	}

	hosts := table.New("Host", "URLs").WithWriter(out)
	for host, n := range s.hosts {
		hosts.AddRow(host, n)
	}
	hosts.Print()

	if len(samples) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	pages := table.New("URL", "Title", "Lang", "Links").WithWriter(out)
	for _, entry := range samples {
		title, lang, links, err := samplePage(ctx, client, entry.Loc)
		if err != nil {
			pages.AddRow(entry.Loc, "error: "+err.Error(), "", "")
			continue
		}
		pages.AddRow(entry.Loc, title, lang, links)
	}
	pages.Print()
	return nil
}

func (s *stats) add(e models.SitemapEntry) {
	s.total++
	if e.Modified {
		s.modified++
	}
	if t := e.LastModified; t != nil {
		s.withLastMod++
		if s.oldest == nil || t.Before(*s.oldest) {
			s.oldest = t
		}
		if s.newest == nil || t.After(*s.newest) {
			s.newest = t
		}
	}
	host := "(invalid)"
	if u, err := url.Parse(e.Loc); err == nil && u.Host != "" {
		host = u.Host
	}
	s.hosts[host]++
}

// samplePage fetches uri and returns its title, html lang and link count.
func samplePage(ctx context.Context, client *http.Client, uri string) (string, string, int, error) {
	body, err := crawler.NewSource(client, "").Fetch(ctx, uri)
	if err != nil {
		return "", "", 0, err
	}
	defer body.Close()

	doc, err := html.Parse(body)
	if err != nil {
		return "", "", 0, err
	}

	var title, lang string
	links := 0
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "html":
				lang = getAttr(n, "lang")
			case "title":
				if title == "" {
					title = getNodeText(n)
				}
			case "a":
				if getAttr(n, "href") != "" {
					links++
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)
	return title, lang, links, nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func getNodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var text string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text += getNodeText(c)
	}
	return strings.TrimSpace(text)
}
