package ingest

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// MinHash/LSH parameters. 128 hashes split into 16 bands of 8 rows gives a
// steep similarity curve around the 0.85 threshold.
const (
	numHashes   = 128
	shingleSize = 3
	numBands    = 16
	rowsPerBand = numHashes / numBands
)

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	nonAlnumRE   = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

// NormalizeText lowercases, collapses whitespace, and strips punctuation.
func NormalizeText(text string) string {
	text = strings.ToLower(text)
	text = whitespaceRE.ReplaceAllString(text, " ")
	text = nonAlnumRE.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Shingles builds the word 3-shingle set of a normalized text. Texts shorter
// than the shingle size collapse to a singleton set of the whole text.
func Shingles(normalized string) map[string]struct{} {
	words := strings.Fields(normalized)
	shingles := make(map[string]struct{})

	if len(words) < shingleSize {
		shingles[normalized] = struct{}{}
		return shingles
	}

	for i := 0; i+shingleSize <= len(words); i++ {
		shingles[strings.Join(words[i:i+shingleSize], " ")] = struct{}{}
	}
	return shingles
}

// MinHashSignature computes the 128-value signature of a text. Empty text
// yields the all-zero signature.
func MinHashSignature(text string) []uint64 {
	signature := make([]uint64, numHashes)

	normalized := NormalizeText(text)
	if normalized == "" {
		return signature
	}

	for i := range signature {
		signature[i] = ^uint64(0)
	}

	for shingle := range Shingles(normalized) {
		for i := 0; i < numHashes; i++ {
			if h := hashWithSeed(shingle, i); h < signature[i] {
				signature[i] = h
			}
		}
	}
	return signature
}

// hashWithSeed hashes "{seed}:{text}" with SHA-256 and takes the first
// 8 bytes big-endian.
func hashWithSeed(text string, seed int) uint64 {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", seed, text)))
	return binary.BigEndian.Uint64(sum[:8])
}

// SignatureSimilarity estimates Jaccard similarity as the fraction of equal
// signature positions.
func SignatureSimilarity(a, b []uint64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}

// TextHash is the short content hash recorded against surviving chunks.
func TextHash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// FindDuplicates buckets signatures with LSH and verifies candidate pairs
// against the similarity threshold. It returns a map from the index of each
// duplicate to the content hash of the earlier chunk it duplicates.
func FindDuplicates(signatures [][]uint64, texts []string, threshold float64) map[int]string {
	duplicates := make(map[int]string)
	if len(signatures) == 0 {
		return duplicates
	}

	type pair struct{ a, b int }
	candidates := make(map[pair]struct{})

	for band := 0; band < numBands; band++ {
		buckets := make(map[string][]int)
		for idx, sig := range signatures {
			start := band * rowsPerBand
			key := bandKey(sig[start : start+rowsPerBand])
			buckets[key] = append(buckets[key], idx)
		}
		for _, members := range buckets {
			for i := 0; i < len(members); i++ {
				for j := i + 1; j < len(members); j++ {
					a, b := members[i], members[j]
					if a > b {
						a, b = b, a
					}
					candidates[pair{a, b}] = struct{}{}
				}
			}
		}
	}

	// Deterministic verification order: the earlier chunk always survives.
	ordered := make([]pair, 0, len(candidates))
	for p := range candidates {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].a != ordered[j].a {
			return ordered[i].a < ordered[j].a
		}
		return ordered[i].b < ordered[j].b
	})

	hashes := make(map[int]string)
	for _, p := range ordered {
		if SignatureSimilarity(signatures[p.a], signatures[p.b]) < threshold {
			continue
		}
		if _, already := duplicates[p.b]; already {
			continue
		}
		if _, ok := hashes[p.a]; !ok {
			hashes[p.a] = TextHash(texts[p.a])
		}
		duplicates[p.b] = hashes[p.a]
	}
	return duplicates
}

func bandKey(band []uint64) string {
	buf := make([]byte, 8*len(band))
	for i, v := range band {
		binary.BigEndian.PutUint64(buf[i*8:], v)
	}
	return string(buf)
}
