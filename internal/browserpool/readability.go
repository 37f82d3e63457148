package browserpool

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/go-rod/rod/lib/proto"
)

//go:embed readability.js
var readabilityScript string

// reportBindingName is the page-world function name the in-page script
// calls to report a parse; the host listens for the matching
// RuntimeBindingCalled event.
const reportBindingName = "reportSnapshot"

// InstallReadability pre-injects the readability parser into every new
// document of bc's page and registers the reportSnapshot page-world
// binding. It must be called once, before navigation, by the consumer
// that drives the page (C2). Acquire does not call this itself: not every
// caller of a BrowserContext needs the snapshot bridge.
func (bc *BrowserContext) InstallReadability(ctx context.Context) error {
	page := bc.Page.Context(ctx)

	if _, err := proto.PageAddScriptToEvaluateOnNewDocument{Source: readabilityScript}.Call(page); err != nil {
		return fmt.Errorf("browserpool: install readability script: %w", err)
	}
	if err := proto.RuntimeAddBinding{Name: reportBindingName}.Call(page); err != nil {
		return fmt.Errorf("browserpool: add binding: %w", err)
	}
	return nil
}
