package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide explains where the secrets of service come from
func ShowTokenGuide(w io.Writer, service string) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	switch service {
	case ServiceMapbox:
		fmt.Fprintln(w, "MAPBOX ACCESS TOKEN")
		fmt.Fprintln(w, strings.Repeat("=", 72))
		fmt.Fprintln(w, "Only needed when map.tile_url contains {accessToken}, for example")
		fmt.Fprintln(w, "  https://api.mapbox.com/styles/v1/mapbox/dark-v11/tiles/{z}/{x}/{y}?access_token={accessToken}")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  1. Sign in at https://account.mapbox.com")
		fmt.Fprintln(w, "  2. Open 'Access tokens' and copy the default public token (pk.…)")
		fmt.Fprintln(w, "  3. Paste it below")
	case ServiceACLED:
		fmt.Fprintln(w, "ACLED API KEY")
		fmt.Fprintln(w, strings.Repeat("=", 72))
		fmt.Fprintln(w, "The curated data files download without an account. A key lets the")
		fmt.Fprintln(w, "download request identify itself with key and email parameters.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  1. Register at https://developer.acleddata.com")
		fmt.Fprintln(w, "  2. Copy the access key from your account page")
		fmt.Fprintln(w, "  3. Enter it below with the email you registered with")
	default:
		fmt.Fprintf(w, "Unknown service %q. Known services: %s\n", service, strings.Join(Services, ", "))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Secrets are kept in the system keyring when available, otherwise in an\n")
	fmt.Fprintf(w, "encrypted file. %s, %s and %s are read as a fallback.\n",
		EnvMapboxToken, EnvACLEDKey, EnvACLEDEmail)
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
