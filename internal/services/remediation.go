package services

import (
	"strings"
	"unicode"

	"moviepicker/internal/types"
)

type clientPlatform string

const (
	platformAndroid clientPlatform = "android"
	platformApple   clientPlatform = "apple"
	platformRoku    clientPlatform = "roku"
	platformTV      clientPlatform = "tv"
	platformConsole clientPlatform = "console"
	platformWeb     clientPlatform = "web"
	platformDesktop clientPlatform = "desktop"
	platformUnknown clientPlatform = ""
)

var remediationMessages = map[clientPlatform]string{
	platformAndroid: "Could not start playback on your Android device. Open Plex on it, check that it is signed in to the same account, and enable \"Advertise as player\" under Settings > Remote Control. Or use the link to start the movie manually.",
	platformApple:   "Could not start playback on your Apple device. Open the Plex app and keep it in the foreground, since iOS and tvOS stop listening for remote commands in the background. Or use the link to start the movie manually.",
	platformRoku:    "Could not start playback on your Roku. Open the Plex channel on the Roku and make sure it is on the same network as the server, then try again. Or use the link to start the movie manually.",
	platformTV:      "Could not start playback on your TV. Open the Plex app on the TV and leave it on the home screen, then try again. Or use the link to start the movie manually.",
	platformConsole: "Could not start playback on your console. Open the Plex app on it, sign in with the same account and leave it on the home screen, then try again. Or use the link to start the movie manually.",
	platformWeb:     "Plex Web cannot be controlled remotely. Use the link to open the movie in your browser.",
	platformDesktop: "Could not start playback on the desktop player. Open Plex HTPC or Plex for desktop, sign in with the same account and try again. Or use the link to start the movie manually.",
	platformUnknown: "Could not reach the selected player. Make sure it is switched on, signed in to Plex and on the same network as the server, then try again. Or use the link to start the movie manually.",
}

// platformTokens is checked in order; the first platform with a matching
// whole word or phrase wins.
var platformTokens = []struct {
	platform clientPlatform
	tokens   []string
}{
	{platformAndroid, []string{"android", "shield"}},
	{platformApple, []string{"ios", "iphone", "ipad", "tvos", "apple tv", "appletv"}},
	{platformRoku, []string{"roku"}},
	{platformTV, []string{"webos", "tizen", "samsung", "lg", "vizio", "smart tv", "netcast"}},
	{platformConsole, []string{"xbox", "playstation", "ps4", "ps5"}},
	{platformWeb, []string{"plex web", "chrome", "firefox", "safari", "edge"}},
	{platformDesktop, []string{"windows", "macos", "mac os", "mac", "osx", "linux", "htpc"}},
}

// RemediationMessage tells the user how to fix delivery to client. A nil
// client gets the generic advice.
func RemediationMessage(client *types.ClientDescriptor) string {
	return remediationMessages[inferPlatform(client)]
}

// inferPlatform trusts the reported platform first and only falls back to
// the product and device names when the platform says nothing useful.
func inferPlatform(client *types.ClientDescriptor) clientPlatform {
	if client == nil {
		return platformUnknown
	}
	if p := platformFromHint(client.Platform); p != platformUnknown {
		return p
	}
	return platformFromHint(client.Product + " " + client.Device)
}

func platformFromHint(hint string) clientPlatform {
	words := strings.FieldsFunc(strings.ToLower(hint), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return platformUnknown
	}
	padded := " " + strings.Join(words, " ") + " "
	for _, entry := range platformTokens {
		for _, token := range entry.tokens {
			if strings.Contains(padded, " "+token+" ") {
				return entry.platform
			}
		}
	}
	return platformUnknown
}
