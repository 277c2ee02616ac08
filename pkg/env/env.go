package env

import (
	"fmt"
	"net/http"

	"github.com/carlmjohnson/versioninfo"
)

// Version is stamped at link time with -X. When unstamped, the VCS info
// embedded by the go toolchain is used instead.
var Version = ""

func CurrentVersion() string {
	if Version != "" {
		return Version
	}
	return versioninfo.Short()
}

func VersionHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "%s\n", CurrentVersion()) // nolint:errcheck
}
