package domain

import (
	"testing"

	"icetrace/testutil"
)

// TestDomainDoesNotImportInternal keeps the domain layer free of internal
// implementation packages.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain package must not import internal packages")
}

func TestDomainImportsNoOtherModulePackage(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.OnlyModuleImports(), "domain package must stay a leaf of the module")
}
