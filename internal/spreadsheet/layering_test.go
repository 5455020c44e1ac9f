package spreadsheet

import (
	"strings"
	"testing"

	"qcref/testutil"
)

func TestSpreadsheetIsStandalone(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", func(path string) bool {
		return strings.HasPrefix(path, "qcref/")
	}, "the parser must not depend on domain or storage packages")
}
