package memory

import (
	"testing"

	"icetrace/testutil"
)

func TestImportsAreDomainOrStdlib(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.OnlyModuleImports("icetrace/pkg/domain"), "memory store depends only on domain")
}
