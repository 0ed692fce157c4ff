package pkce

import (
	"html"
	"strings"
)

// LoginSuccessHtml is shown in the browser once the authorization code was captured.
const LoginSuccessHtml = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Authentication Successful - {{APP_NAME}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #f3f4f6;
        }
        .container {
            text-align: center;
            background: white;
            padding: 2.5rem;
            border-radius: 12px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 480px;
        }
        h1 { color: #1f2937; font-size: 1.5rem; }
        p { color: #6b7280; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Authentication Successful</h1>
        <p>Please return to the application. You can close this window.</p>
    </div>
    <script>setTimeout(function () { window.close(); }, 5000);</script>
</body>
</html>`

// LoginErrorHtml is shown in the browser when the provider redirected with an error.
const LoginErrorHtml = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Authentication Failed - {{APP_NAME}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #f3f4f6;
        }
        .container {
            text-align: center;
            background: white;
            padding: 2.5rem;
            border-radius: 12px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 480px;
        }
        h1 { color: #b91c1c; font-size: 1.5rem; }
        p { color: #6b7280; }
        code { background: #fee2e2; padding: 0.2rem 0.4rem; border-radius: 4px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Sorry, authentication failed</h1>
        <p><code>{{ERROR}}</code></p>
        <p>Please check the application command line.</p>
    </div>
</body>
</html>`

// renderPage fills the placeholders of one of the pages above. Values are HTML escaped.
func renderPage(page, appName, errMsg string) string {
	if appName == "" {
		appName = "pkcelogin"
	}
	return strings.NewReplacer(
		"{{APP_NAME}}", html.EscapeString(appName),
		"{{ERROR}}", html.EscapeString(errMsg),
	).Replace(page)
}
