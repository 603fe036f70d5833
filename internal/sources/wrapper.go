package sources

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

// DefaultExternalURL is used when an external wrapper has no target
const DefaultExternalURL = "https://lagged.com"

var rufflePage = template.Must(template.New("ruffle").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Name}}</title>
    <style>
        body, html { margin: 0; padding: 0; overflow: hidden; background: #000; }
        #container {
            position: fixed; top: 0; left: 0; right: 0; bottom: 0;
            width: 100%; height: 100%;
            display: flex; align-items: center; justify-content: center;
        }
        ruffle-player { width: 100%; height: 100%; max-width: 100vw; max-height: 100vh; }
    </style>
    <script src="https://unpkg.com/@ruffle-rs/ruffle@latest"></script>
    <script>
        window.RufflePlayer = window.RufflePlayer || {};
        window.RufflePlayer.config = {
            "polyfills": true,
            "letterbox": "on",
            "autoplay": "on",
            "upgradeToHttps": true,
            "showSwfDownload": false,
            "menu": false,
            "contextMenu": "off",
            "scale": "exactfit",
            "forceScale": true,
            "openUrlMode": "deny",
            "splashScreen": false,
            "warnOnUnsupportedContent": false
        };

        window.addEventListener("load", function () {
            const ruffle = window.RufflePlayer.newest();
            const player = ruffle.createPlayer();
            const container = document.getElementById("container");
            container.appendChild(player);
            player.style.width = "100%";
            player.style.height = "100%";
            player.load({ url: {{.SWF}}, allowScriptAccess: false })
                .then(function () { console.info("Game file loaded"); })
                .catch(function (e) { console.error("Error loading game file", e); });
        });
    </script>
</head>
<body>
    <div id="container"></div>
</body>
</html>
`))

var externalPage = template.Must(template.New("external").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Name}}</title>
    <style>
        body, html { margin: 0; padding: 0; overflow: hidden; background: #000; }
        iframe { width: 100%; height: 100vh; border: none; }
    </style>
</head>
<body>
    <iframe src="{{.URL}}" allowfullscreen></iframe>
</body>
</html>
`))

// RufflePage renders a page that plays a local SWF file with Ruffle
func RufflePage(name, swf string) ([]byte, error) {
	var buf bytes.Buffer
	err := rufflePage.Execute(&buf, struct{ Name, SWF string }{name, swf})
	if err != nil {
		return nil, fmt.Errorf("render ruffle page: %w", err)
	}
	return buf.Bytes(), nil
}

// ExternalPage renders a page that embeds gameURL in a full-screen iframe
func ExternalPage(name, gameURL string) ([]byte, error) {
	if gameURL == "" {
		gameURL = DefaultExternalURL
	}
	var buf bytes.Buffer
	err := externalPage.Execute(&buf, struct{ Name, URL string }{name, gameURL})
	if err != nil {
		return nil, fmt.Errorf("render external page: %w", err)
	}
	return buf.Bytes(), nil
}

func writeIndex(dir string, page []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create game directory: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "index.html"), page, 0644)
}
