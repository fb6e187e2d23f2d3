package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/epub"
	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

func main() {
	log := logger.New()

	var opts struct {
		JSON     bool `short:"j" long:"json" description:"Print the metadata as JSON"`
		Chapters bool `short:"c" long:"chapters" description:"Print the table of contents"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/parse-epub [--json] [--chapters] <path/to/file.epub>")
		os.Exit(1)
	}

	metadata, err := epub.Parse(args[0])
	if err != nil {
		log.Err(err).Fatal("epub parse error")
	}

	if opts.JSON {
		b, err := json.MarshalIndent(metadata, "", "  ")
		if err != nil {
			log.Err(err).Fatal("json marshal error")
		}
		fmt.Println(string(b))
		return
	}

	fmt.Printf("Title: %s\nAuthor(s): %s\nLanguage: %s\nSpine items: %d\n", metadata.Title, metadata.Author(), metadata.Language, len(metadata.Spine))
	if opts.Chapters {
		printChapters(metadata.Chapters, 0)
	}
}

func printChapters(chapters []epub.Chapter, depth int) {
	for _, ch := range chapters {
		href := ""
		if ch.Href != nil {
			href = " (" + *ch.Href + ")"
		}
		fmt.Printf("%s- %s%s\n", strings.Repeat("  ", depth), ch.Title, href)
		printChapters(ch.Children, depth+1)
	}
}
