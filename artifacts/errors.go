package artifacts

import "fmt"

var (
	ErrInvalidDependency   = fmt.Errorf("dependency must look like org/repo@version")
	ErrPackageNotInstalled = fmt.Errorf("dependency package is not installed")
	ErrArtifactNotFound    = fmt.Errorf("build artifact not found")
	ErrMalformedArtifact   = fmt.Errorf("malformed build artifact")
	ErrNoBytecode          = fmt.Errorf("artifact has no creation bytecode")
	ErrUnlinked            = fmt.Errorf("artifact bytecode has unlinked libraries")
)
