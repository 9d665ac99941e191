package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowAppRegistrationGuide explains how to create the Reddit app whose
// client ID and secret the extractor uses
func ShowAppRegistrationGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "REDDIT API CREDENTIALS")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The extractor authenticates with an application-only OAuth token.")
	fmt.Fprintln(w, "It needs the client ID and secret of a Reddit 'script' app:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Sign in and open https://www.reddit.com/prefs/apps")
	fmt.Fprintln(w, "  2. Click 'create another app...'")
	fmt.Fprintln(w, "  3. Pick the 'script' type; any redirect URI works, e.g. http://localhost:8080")
	fmt.Fprintln(w, "  4. The client ID is the string under 'personal use script'")
	fmt.Fprintln(w, "  5. The client secret is shown next to 'secret'")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Reddit asks for a descriptive user agent such as")
	fmt.Fprintln(w, "  linux:redditetl:1.0 (by /u/your_username)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Credentials are kept in the system keychain when available and")
	fmt.Fprintln(w, "otherwise in an encrypted file in the config directory.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
}
