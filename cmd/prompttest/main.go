package main

// Try the classification prompt against a local file:
//   go run ./cmd/prompttest -file ./W-2.pdf -account acc-1

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filing-backend/internal/classify"
	openai "filing-backend/internal/llm/openai"
	"filing-backend/internal/shared/config"
	"filing-backend/internal/shared/storage/object"
)

type output struct {
	FileName    string           `json:"file_name"`
	ContentType string           `json:"content_type"`
	ExcerptLen  int              `json:"excerpt_len"`
	Segments    []string         `json:"segments"`
	Result      *classify.Result `json:"result"`
}

func main() {
	cfg := config.Load()

	filePath := flag.String("file", "", "Path to the document to classify")
	accountID := flag.String("account", "", "Account id shown to the model (optional)")
	taxonomyPath := flag.String("taxonomy", cfg.TaxonomyFile, "Taxonomy YAML (defaults to the embedded tree)")
	printPrompt := flag.Bool("print-prompt", false, "Print the prompts instead of calling the model")
	outPath := flag.String("out", "", "Path to write JSON output (optional)")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" {
		exitErr("file path is required")
	}

	body, err := os.ReadFile(*filePath)
	if err != nil {
		exitErr(fmt.Sprintf("read file: %v", err))
	}
	fileName := filepath.Base(*filePath)
	contentType := object.ContentType(fileName, body)

	taxonomy, err := loadTaxonomy(*taxonomyPath)
	if err != nil {
		exitErr(fmt.Sprintf("load taxonomy: %v", err))
	}

	client, err := openai.NewClient(openai.Options{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   *model,
		BaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil && !*printPrompt {
		exitErr(err.Error())
	}

	classifier := classify.New(client, taxonomy, classify.Options{
		MaxTokens:    cfg.ClassifyMaxTokens,
		Temperature:  float32(cfg.ClassifyTemperature),
		ExcerptRunes: cfg.ClassifyExcerpt,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	input := classify.Input{
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   int64(len(body)),
		AccountID:   *accountID,
		UploadedAt:  time.Now().UTC(),
		Excerpt:     classifier.Excerpt(ctx, body, contentType, fileName),
	}

	if *printPrompt {
		fmt.Println(classify.SystemPrompt(taxonomy))
		fmt.Println("---")
		fmt.Println(classify.UserPrompt(input, time.Now()))
		return
	}

	result, err := classifier.Classify(ctx, input)
	if err != nil {
		exitErr(fmt.Sprintf("classify: %v", err))
	}
	if result == nil {
		exitErr("model output could not be parsed")
	}

	pretty, err := json.MarshalIndent(output{
		FileName:    fileName,
		ContentType: contentType,
		ExcerptLen:  len([]rune(input.Excerpt)),
		Segments:    result.Segments(),
		Result:      result,
	}, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	fmt.Println(string(pretty))
}

func loadTaxonomy(path string) (classify.Taxonomy, error) {
	if strings.TrimSpace(path) == "" {
		return classify.DefaultTaxonomy()
	}
	return classify.LoadTaxonomy(path)
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
