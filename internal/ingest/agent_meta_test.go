package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doclens-ai/doclens/internal/llm"
)

func TestMetaAgent_HeuristicDocType(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		docType string
	}{
		{"invoice", "INVOICE No. 2024-001\nAmount due: 1,250.00 EUR", "invoice"},
		{"contract", "This Agreement is entered into by the parties who hereby agree as follows.", "contract"},
		{"report", "Annual Report 2024. The findings indicate steady growth.", "report"},
		{"email", "From: ana@example.com\nTo: tim@example.com\nSubject: Meeting", "email"},
		{"fallback", "Some unclassifiable plain text.", "other"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ic := testContext()
			ic.RawText = tc.text

			agent := NewMetaAgent(nil)
			require.NoError(t, agent.Process(context.Background(), ic))
			assert.Equal(t, tc.docType, ic.DocType)
		})
	}
}

func TestMetaAgent_HeuristicEntities(t *testing.T) {
	ic := testContext()
	ic.RawText = "Invoice dated 15.03.2024 for 1,250.00 EUR. " +
		"Contact billing@example.com or +387 61 123 456."

	agent := NewMetaAgent(nil)
	require.NoError(t, agent.Process(context.Background(), ic))

	types := make(map[string]int)
	for _, ent := range ic.Entities {
		types[ent.Type]++
	}
	assert.GreaterOrEqual(t, types["DATE"], 1)
	assert.GreaterOrEqual(t, types["MONEY"], 1)
	assert.Equal(t, 1, types["EMAIL"])
	assert.GreaterOrEqual(t, types["PHONE"], 1)
}

func TestMetaAgent_ExtractPatterns(t *testing.T) {
	ic := testContext()
	ic.RawText = "Document REF-20431 references https://example.com/specs " +
		"and national id 0101990123456."

	agent := NewMetaAgent(nil)
	require.NoError(t, agent.Process(context.Background(), ic))

	meta := ic.Metadata()
	assert.Equal(t, []string{"0101990123456"}, meta["id_numbers"])
	assert.Contains(t, meta["document_ids"], "REF-20431")
	assert.Equal(t, []string{"https://example.com/specs"}, meta["urls"])
}

func TestMetaAgent_LLMDocType(t *testing.T) {
	completer := &llm.MockCompleter{Responses: []string{
		`{"doc_type":"contract","confidence":0.92,"language":"en","keywords":["agreement","term"]}`,
		`{"entities":[{"text":"Acme d.o.o.","type":"ORG"}]}`,
	}}

	ic := testContext()
	ic.RawText = "This Agreement is made between Acme d.o.o. and the Client."

	agent := NewMetaAgent(completer)
	require.NoError(t, agent.Process(context.Background(), ic))

	assert.Equal(t, "contract", ic.DocType)
	require.Len(t, ic.Entities, 1)
	assert.Equal(t, "ORG", ic.Entities[0].Type)
	assert.Equal(t, "en", ic.Metadata()["language"])
}

func TestMetaAgent_LLMFailureFallsBack(t *testing.T) {
	completer := &llm.MockCompleter{Err: errors.New("model unavailable")}

	ic := testContext()
	ic.RawText = "INVOICE No. 55, amount due 40.00 EUR."

	agent := NewMetaAgent(completer)
	require.NoError(t, agent.Process(context.Background(), ic))

	assert.Equal(t, "invoice", ic.DocType)
	assert.NotEmpty(t, ic.Errors())
}

func TestMetaAgent_NoText(t *testing.T) {
	ic := testContext()
	agent := NewMetaAgent(nil)

	require.NoError(t, agent.Process(context.Background(), ic))
	assert.Empty(t, ic.DocType)
	assert.NotEmpty(t, ic.Errors())
}

func TestUniqueStrings(t *testing.T) {
	out := uniqueStrings([]string{"a", "b", "a", "c", "b"}, 2)
	assert.Equal(t, []string{"a", "b"}, out)
	assert.Nil(t, uniqueStrings(nil, 5))
}
