package gis

import (
	"html/template"
	"io"
)

var promptPage = template.Must(template.New("prompt").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>ChatPal · Sign in with Google</title>
<script src="https://accounts.google.com/gsi/client" async defer></script>
</head>
<body>
<div id="g_id_onload"
     data-client_id="{{.ClientID}}"
     data-login_uri="{{.LoginURI}}"
     data-auto_select="{{.AutoSelect}}"
     data-cancel_on_tap_outside="{{.CancelOnTapOutside}}"
     data-ux_mode="redirect"></div>
<div class="g_id_signin" data-type="standard"></div>
</body>
</html>
`))

// RenderPrompt writes the page that loads GIS and posts the credential to
// loginURI.
func RenderPrompt(w io.Writer, cfg PageConfig, loginURI string) error {
	return promptPage.Execute(w, struct {
		PageConfig
		LoginURI string
	}{cfg, loginURI})
}
