package oauth

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
)

// setSecurityHeaders sets recommended security headers for HTML responses.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
}

const pageStyle = `
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 50%, #0f3460 100%);
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            color: #eaeaea;
        }
        .card {
            background: rgba(255, 255, 255, 0.06);
            border-radius: 12px;
            padding: 2.5rem;
            width: 100%;
            max-width: 380px;
        }
        h1 { font-size: 1.4rem; margin-bottom: 1.5rem; text-align: center; }
        label { display: block; margin-bottom: 0.3rem; font-size: 0.9rem; }
        input {
            width: 100%;
            padding: 0.6rem;
            margin-bottom: 1rem;
            border: 1px solid #444;
            border-radius: 6px;
            background: #11131c;
            color: #eaeaea;
        }
        button {
            width: 100%;
            padding: 0.7rem;
            border: none;
            border-radius: 6px;
            background: #2f6fed;
            color: white;
            font-size: 1rem;
            cursor: pointer;
        }
        .error { color: #ff6b6b; margin-bottom: 1rem; text-align: center; }
        .hint { margin-top: 1rem; font-size: 0.85rem; text-align: center; }
        .hint a { color: #8ab4f8; }
`

// renderLoginPage renders the authorization login form. The OAuth request
// parameters travel through hidden fields so the POST can re-validate them.
func renderLoginPage(w http.ResponseWriter, req *AuthorizeRequest, errMsg string) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	errorBlock := ""
	if errMsg != "" {
		errorBlock = fmt.Sprintf(`<p class="error">%s</p>`, html.EscapeString(errMsg))
	}

	signupQuery := url.Values{
		"client_id":             {req.ClientID},
		"redirect_uri":          {req.RedirectURI},
		"scope":                 {req.Scope},
		"state":                 {req.State},
		"code_challenge":        {req.CodeChallenge},
		"code_challenge_method": {"S256"},
		"response_type":         {"code"},
	}

	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Sign In - Meal Planner</title>
    <style>%s</style>
</head>
<body>
    <div class="card">
        <h1>Sign in to Meal Planner</h1>
        %s
        <form method="POST" action="/authorize">
            <label for="username">Username</label>
            <input type="text" id="username" name="username" autocomplete="username" required>
            <label for="password">Password</label>
            <input type="password" id="password" name="password" autocomplete="current-password" required>
            <input type="hidden" name="client_id" value="%s">
            <input type="hidden" name="redirect_uri" value="%s">
            <input type="hidden" name="scope" value="%s">
            <input type="hidden" name="state" value="%s">
            <input type="hidden" name="code_challenge" value="%s">
            <button type="submit">Sign In</button>
        </form>
        <p class="hint">No account? <a href="/signup?%s">Create one</a></p>
    </div>
</body>
</html>`,
		pageStyle,
		errorBlock,
		html.EscapeString(req.ClientID),
		html.EscapeString(req.RedirectURI),
		html.EscapeString(req.Scope),
		html.EscapeString(req.State),
		html.EscapeString(req.CodeChallenge),
		signupQuery.Encode(),
	)
}

// renderSignupPage renders the account creation form, preserving the OAuth
// request so a fresh account lands back in the authorization flow.
func renderSignupPage(w http.ResponseWriter, req *AuthorizeRequest, errMsg string) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	errorBlock := ""
	if errMsg != "" {
		errorBlock = fmt.Sprintf(`<p class="error">%s</p>`, html.EscapeString(errMsg))
	}

	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Create Account - Meal Planner</title>
    <style>%s</style>
</head>
<body>
    <div class="card">
        <h1>Create your account</h1>
        %s
        <form method="POST" action="/signup">
            <label for="username">Username</label>
            <input type="text" id="username" name="username" autocomplete="username" required>
            <label for="email">Email</label>
            <input type="email" id="email" name="email" autocomplete="email" required>
            <label for="password">Password (8+ characters)</label>
            <input type="password" id="password" name="password" autocomplete="new-password" required>
            <input type="hidden" name="client_id" value="%s">
            <input type="hidden" name="redirect_uri" value="%s">
            <input type="hidden" name="scope" value="%s">
            <input type="hidden" name="state" value="%s">
            <input type="hidden" name="code_challenge" value="%s">
            <button type="submit">Create Account</button>
        </form>
    </div>
</body>
</html>`,
		pageStyle,
		errorBlock,
		html.EscapeString(req.ClientID),
		html.EscapeString(req.RedirectURI),
		html.EscapeString(req.Scope),
		html.EscapeString(req.State),
		html.EscapeString(req.CodeChallenge),
	)
}

// renderErrorPage renders a terminal error page for requests that cannot be
// redirected back to the client.
func renderErrorPage(w http.ResponseWriter, status int, message string) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Authorization Error - Meal Planner</title>
    <style>%s</style>
</head>
<body>
    <div class="card">
        <h1>Authorization Error</h1>
        <p class="error">%s</p>
    </div>
</body>
</html>`,
		pageStyle,
		html.EscapeString(message),
	)
}
