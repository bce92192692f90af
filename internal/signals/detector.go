// Package signals estimates how strongly a text expresses frustration (pain)
// and purchase or switching intent (buyer).
package signals

import (
	"strings"

	"github.com/painradar/painradar/internal/lexicon"
	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/textutil"
)

// commentWeight discounts vocabulary hits found only in replies
const commentWeight = 0.5

// Detector counts pain and buyer vocabulary hits
type Detector struct {
	lex *lexicon.Lexicon
}

// NewDetector creates a detector over lex
func NewDetector(lex *lexicon.Lexicon) *Detector {
	return &Detector{lex: lex}
}

// PainHits counts distinct pain terms in text
func (d *Detector) PainHits(text string) int {
	return textutil.CountTerms(textutil.Normalize(text), d.lex.Pain)
}

// BuyerHits counts distinct buyer-intent terms in text
func (d *Detector) BuyerHits(text string) int {
	return textutil.CountTerms(textutil.Normalize(text), d.lex.Buyer)
}

// Detect scores an item from its title, body and any deep-scanned comments
func (d *Detector) Detect(item models.RawItem) (pain, buyer float64) {
	pain = float64(d.PainHits(item.Text()))
	buyer = float64(d.BuyerHits(item.Text()))
	if len(item.TopComments) > 0 {
		comments := strings.Join(item.TopComments, "\n")
		pain += commentWeight * float64(d.PainHits(comments))
		buyer += commentWeight * float64(d.BuyerHits(comments))
	}
	return pain, buyer
}
