package main

// Run the local OCR engine over files without starting the API:
//   go run ./cmd/runocr --lang eng receipt.png invoice.pdf

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"docutext-backend/internal/ocr"
)

type fileResult struct {
	File       string  `json:"file"`
	MimeType   string  `json:"mimeType"`
	Confidence float64 `json:"confidence"`
	Text       string  `json:"text,omitempty"`
	Error      string  `json:"error,omitempty"`
}

func main() {
	lang := flag.String("lang", "eng", "tesseract language codes, + separated")
	textOnly := flag.Bool("text", false, "print extracted text instead of JSON")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: runocr [--lang eng] [--text] FILE...")
		os.Exit(2)
	}

	engine := ocr.NewEngine(strings.Split(*lang, "+")...)
	defer engine.Close()

	enc := json.NewEncoder(os.Stdout)
	exitCode := 0
	for _, path := range flag.Args() {
		res := runOne(context.Background(), engine, path)
		if res.Error != "" {
			exitCode = 1
		}
		if *textOnly {
			if res.Error != "" {
				log.Printf("%s: %s", res.File, res.Error)
				continue
			}
			fmt.Println(res.Text)
			continue
		}
		if err := enc.Encode(res); err != nil {
			log.Fatalf("encode result: %v", err)
		}
	}
	os.Exit(exitCode)
}

func runOne(ctx context.Context, engine *ocr.Engine, path string) fileResult {
	out := fileResult{File: path}

	data, err := os.ReadFile(path)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	out.MimeType = ocr.NormalizeMimeType(mimeType, path, data)

	res, err := engine.Extract(ctx, data, out.MimeType, filepath.Base(path))
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Text = res.Text
	out.Confidence = res.Confidence
	return out
}
