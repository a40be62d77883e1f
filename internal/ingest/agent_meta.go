package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/doclens-ai/doclens/internal/llm"
)

// MetaAgent classifies the document and extracts entities and metadata.
// With a completer it runs model-based classification and NER; without one
// it falls back to keyword and regex heuristics. Pattern extraction for IDs,
// URLs, dates, and amounts always runs.
type MetaAgent struct {
	completer llm.Completer
}

// NewMetaAgent creates the metadata agent. completer may be nil.
func NewMetaAgent(completer llm.Completer) *MetaAgent {
	return &MetaAgent{completer: completer}
}

func (a *MetaAgent) Name() string           { return "meta" }
func (a *MetaAgent) Dependencies() []string { return []string{"extract", "structure"} }
func (a *MetaAgent) Required() []string     { return []string{"extract"} }

// Process extracts document type, entities, and metadata patterns.
func (a *MetaAgent) Process(ctx context.Context, ic *Context) error {
	if ic.RawText == "" {
		ic.AddError("no text for metadata extraction")
		return nil
	}

	if a.completer != nil {
		if err := a.llmDetectDocType(ctx, ic); err != nil {
			ic.AddError(fmt.Sprintf("llm doc type: %v", err))
			a.heuristicDetectDocType(ic)
		}
		if err := a.llmExtractEntities(ctx, ic); err != nil {
			ic.AddError(fmt.Sprintf("llm ner: %v", err))
		}
	} else {
		a.heuristicDetectDocType(ic)
		a.heuristicExtractEntities(ic)
	}

	a.extractPatterns(ic)

	ic.SetMetric("entities_extracted", len(ic.Entities))
	return nil
}

type llmDocType struct {
	DocType    string   `json:"doc_type"`
	Confidence float64  `json:"confidence"`
	Language   string   `json:"language"`
	Keywords   []string `json:"keywords"`
}

func (a *MetaAgent) llmDetectDocType(ctx context.Context, ic *Context) error {
	sample := ic.RawText
	if len(sample) > 2000 {
		sample = sample[:2000]
	}

	prompt := fmt.Sprintf(`Analyze the following document and classify it:

%s

Respond with JSON:
{
  "doc_type": "invoice|contract|report|email|memo|letter|policy|manual|other",
  "confidence": 0.0-1.0,
  "language": "two-letter language code",
  "keywords": ["key", "words"]
}`, sample)

	outs, err := a.completer.Complete(ctx, prompt, 1)
	if err != nil {
		return err
	}

	var parsed llmDocType
	if err := json.Unmarshal([]byte(llm.StripJSONFence(outs[0])), &parsed); err != nil {
		return fmt.Errorf("parse doc type response: %w", err)
	}

	if parsed.DocType == "" {
		parsed.DocType = "other"
	}
	ic.DocType = parsed.DocType
	ic.SetMetadata("doc_type_confidence", parsed.Confidence)
	ic.SetMetadata("language", parsed.Language)
	ic.SetMetadata("keywords", parsed.Keywords)
	return nil
}

func (a *MetaAgent) heuristicDetectDocType(ic *Context) {
	textLower := strings.ToLower(ic.RawText)

	containsAny := func(keywords ...string) bool {
		for _, kw := range keywords {
			if strings.Contains(textLower, kw) {
				return true
			}
		}
		return false
	}

	switch {
	case containsAny("invoice", "faktura", "račun", "amount due", "pdv", "vat"):
		ic.DocType = "invoice"
	case containsAny("contract", "ugovor", "agreement", "hereby agree"):
		ic.DocType = "contract"
	case containsAny("report", "izvještaj", "analysis", "findings", "results"):
		ic.DocType = "report"
	case containsAny("from:", "to:", "subject:"):
		ic.DocType = "email"
	case containsAny("memo", "memorandum"):
		ic.DocType = "memo"
	default:
		ic.DocType = "other"
	}

	ic.SetMetadata("detection_method", "heuristic")
}

type llmEntity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

type llmEntities struct {
	Entities []llmEntity `json:"entities"`
}

func (a *MetaAgent) llmExtractEntities(ctx context.Context, ic *Context) error {
	sample := ic.RawText
	if len(sample) > 2500 {
		sample = sample[:2500]
	}

	prompt := fmt.Sprintf(`Extract all important entities from the text:

%s

Respond with JSON:
{
  "entities": [
    {"text": "...", "type": "PERSON|ORG|DATE|MONEY|LOCATION|ID|OTHER"}
  ]
}

Focus on: names, companies, dates, monetary amounts, locations, document numbers.`, sample)

	outs, err := a.completer.Complete(ctx, prompt, 1)
	if err != nil {
		return err
	}

	var parsed llmEntities
	if err := json.Unmarshal([]byte(llm.StripJSONFence(outs[0])), &parsed); err != nil {
		return fmt.Errorf("parse ner response: %w", err)
	}

	for _, ent := range parsed.Entities {
		entType := ent.Type
		if entType == "" {
			entType = "OTHER"
		}
		ic.Entities = append(ic.Entities, Entity{
			Text:       ent.Text,
			Type:       entType,
			Confidence: 0.8,
		})
	}
	return nil
}

var (
	dateREs = []*regexp.Regexp{
		regexp.MustCompile(`\d{1,2}[./-]\d{1,2}[./-]\d{2,4}`),
		regexp.MustCompile(`\d{4}[./-]\d{1,2}[./-]\d{1,2}`),
	}
	moneyRE     = regexp.MustCompile(`(?i)\d+[.,]?\d*\s*(EUR|USD|BAM|KM|RSD|€|\$)`)
	emailRE     = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRE     = regexp.MustCompile(`\+?\d{1,4}[-.\s]?\(?\d{1,3}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,4}[-.\s]?\d{1,9}`)
	idNumberRE  = regexp.MustCompile(`\b\d{13}\b`)
	docIDRE     = regexp.MustCompile(`\b[A-Z]{2,4}[-/]?\d{3,8}\b`)
	urlRE       = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
	phoneDigits = regexp.MustCompile(`[\s.\-]`)
)

func (a *MetaAgent) heuristicExtractEntities(ic *Context) {
	text := ic.RawText

	for _, re := range dateREs {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			ic.Entities = append(ic.Entities, Entity{
				Text:       text[loc[0]:loc[1]],
				Type:       "DATE",
				Start:      loc[0],
				End:        loc[1],
				Confidence: 0.9,
			})
		}
	}

	for _, loc := range moneyRE.FindAllStringIndex(text, -1) {
		ic.Entities = append(ic.Entities, Entity{
			Text:       text[loc[0]:loc[1]],
			Type:       "MONEY",
			Start:      loc[0],
			End:        loc[1],
			Confidence: 0.85,
		})
	}

	for _, loc := range emailRE.FindAllStringIndex(text, -1) {
		ic.Entities = append(ic.Entities, Entity{
			Text:       text[loc[0]:loc[1]],
			Type:       "EMAIL",
			Start:      loc[0],
			End:        loc[1],
			Confidence: 0.95,
		})
	}

	for _, loc := range phoneRE.FindAllStringIndex(text, -1) {
		match := text[loc[0]:loc[1]]
		if len(phoneDigits.ReplaceAllString(match, "")) >= 8 {
			ic.Entities = append(ic.Entities, Entity{
				Text:       match,
				Type:       "PHONE",
				Start:      loc[0],
				End:        loc[1],
				Confidence: 0.7,
			})
		}
	}
}

// extractPatterns records pattern matches that matter regardless of mode.
func (a *MetaAgent) extractPatterns(ic *Context) {
	text := ic.RawText

	if ids := uniqueStrings(idNumberRE.FindAllString(text, -1), 5); len(ids) > 0 {
		ic.SetMetadata("id_numbers", ids)
	}

	if docIDs := uniqueStrings(docIDRE.FindAllString(text, -1), 10); len(docIDs) > 0 {
		ic.SetMetadata("document_ids", docIDs)
	}

	if urls := uniqueStrings(urlRE.FindAllString(text, -1), 10); len(urls) > 0 {
		ic.SetMetadata("urls", urls)
	}

	var dates, amounts []string
	for _, ent := range ic.Entities {
		switch ent.Type {
		case "DATE":
			dates = append(dates, ent.Text)
		case "MONEY":
			amounts = append(amounts, ent.Text)
		}
	}
	if dates = uniqueStrings(dates, 10); len(dates) > 0 {
		ic.SetMetadata("dates", dates)
	}
	if amounts = uniqueStrings(amounts, 10); len(amounts) > 0 {
		ic.SetMetadata("money_amounts", amounts)
	}
}

func uniqueStrings(in []string, limit int) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}
