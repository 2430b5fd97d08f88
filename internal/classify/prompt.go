package classify

import (
	"fmt"
	"strings"
	"time"
)

// Input is everything the classifier sees about one document.
type Input struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	UserName    string
	UserEmail   string
	AccountID   string
	UploadedAt  time.Time
	// Excerpt is extracted document text; empty when none could be pulled.
	Excerpt string
}

// SystemPrompt renders the fixed instructions and taxonomy.
func SystemPrompt(t Taxonomy) string {
	var b strings.Builder
	b.WriteString("You file documents for an accounting firm into a fixed folder tree.\n")
	b.WriteString("Every path has the form {year}/{folder}/{subfolder}. Use only the folder and subfolder names listed below, spelled exactly.\n\n")
	b.WriteString("Folders:\n")
	for _, c := range t.Categories {
		fmt.Fprintf(&b, "- %s", c.Folder)
		if c.Tag != "" {
			fmt.Fprintf(&b, " (category: %s)", c.Tag)
		}
		b.WriteString("\n")
		for _, sub := range c.Subfolders {
			fmt.Fprintf(&b, "    - %s\n", sub)
		}
	}
	fmt.Fprintf(&b, "\nIf you are at least %d%% sure the document does not fit any named subfolder, file it under \"%s\".\n",
		int(t.CatchAllConfidence*100+0.5), t.CatchAll)
	b.WriteString("Use the tax year the document relates to; when unclear use the upload year.\n\n")
	b.WriteString("Respond with a single JSON object and nothing else:\n")
	b.WriteString(`{"suggested_path": "2024/02 - Source Documents/W-2s", "category": "<category>", "confidence": 0.0-1.0, "reasoning": "<one sentence>", "auto_create": false}`)
	if tags := t.Tags(); len(tags) > 0 {
		fmt.Fprintf(&b, "\ncategory must be one of: %s.", strings.Join(tags, ", "))
	}
	return b.String()
}

// UserPrompt renders the per-document context.
func UserPrompt(in Input, now time.Time) string {
	uploaded := in.UploadedAt
	if uploaded.IsZero() {
		uploaded = now
	}
	uploaded = uploaded.UTC()

	var b strings.Builder
	b.WriteString("Classify this document.\n")
	fmt.Fprintf(&b, "File name: %s\n", in.FileName)
	if in.ContentType != "" {
		fmt.Fprintf(&b, "Content type: %s\n", in.ContentType)
	}
	if in.SizeBytes > 0 {
		fmt.Fprintf(&b, "Size: %d bytes\n", in.SizeBytes)
	}
	if in.UserName != "" || in.UserEmail != "" {
		fmt.Fprintf(&b, "Uploaded by: %s\n", strings.TrimSpace(in.UserName+" <"+in.UserEmail+">"))
	}
	if in.AccountID != "" {
		fmt.Fprintf(&b, "Account: %s\n", in.AccountID)
	}
	fmt.Fprintf(&b, "Upload date: %s\n", uploaded.Format("2006-01-02"))
	fmt.Fprintf(&b, "Upload year: %d\n", uploaded.Year())
	if ex := strings.TrimSpace(in.Excerpt); ex != "" {
		b.WriteString("\nDocument text excerpt:\n\"\"\"\n")
		b.WriteString(ex)
		b.WriteString("\n\"\"\"\n")
	}
	return b.String()
}
