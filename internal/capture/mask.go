package capture

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/xerrors"
)

// maskScript returns a page function that blacks out every element matched
// by the selectors passed to it. The class name is randomised so it cannot
// clash with the page's own styles.
func maskScript() (string, error) {
	unique := make([]byte, 8)
	if _, err := rand.Read(unique); err != nil {
		return "", xerrors.Errorf("failed to generate unique identifier: %w", err)
	}
	maskClassName := fmt.Sprintf("mask-%s", hex.EncodeToString(unique))

	maskCSS := fmt.Sprintf(`
.%s {
  position: relative !important;
}
.%s::after {
  content: "" !important;
  position: absolute !important;
  inset: 0 !important;
  background-color: black !important;
  z-index: 2147483646 !important;
  pointer-events: none !important;
}
`, maskClassName, maskClassName)

	return fmt.Sprintf(`(selectors) => {
	const style = document.createElement('style');
	style.textContent = %q;
	document.head.appendChild(style);

	for (const selector of selectors) {
		for (const element of document.querySelectorAll(selector)) {
			if (window.getComputedStyle(element).position === 'static') {
				element.style.position = 'relative';
			}
			element.classList.add(%q);
		}
	}
}`, maskCSS, maskClassName), nil
}
