package translator

import (
	"context"
	"fmt"

	"github.com/abadojack/whatlanggo"
)

// Whatlang detects languages offline. It cannot translate, so it is only
// useful as a detection fallback at the end of the chain.
type Whatlang struct{}

// NewWhatlang creates the offline detector.
func NewWhatlang() *Whatlang { return &Whatlang{} }

// Name returns "whatlang".
func (*Whatlang) Name() string { return "whatlang" }

// Translate always returns ErrUnsupported.
func (*Whatlang) Translate(context.Context, string, string, string) (string, error) {
	return "", ErrUnsupported
}

// DetectLanguage runs trigram detection over text.
func (*Whatlang) DetectLanguage(_ context.Context, text string) (Detection, error) {
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		return Detection{}, fmt.Errorf("no ISO 639-1 code for %s", info.Lang.String())
	}
	return Detection{Language: code, Confidence: info.Confidence}, nil
}
