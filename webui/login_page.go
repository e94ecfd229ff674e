package webui

import (
	"html/template"
	"io"
	"net/http"
)

const loginPageHTML = `<!DOCTYPE html>
<html lang="es">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>EduDiff - Acceso</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            background: linear-gradient(135deg, #2563eb 0%, #7c3aed 100%);
        }
        .login-container {
            background: #fff;
            border-radius: 16px;
            padding: 40px;
            width: 100%;
            max-width: 380px;
            box-shadow: 0 25px 50px -12px rgba(0, 0, 0, 0.35);
        }
        h1 { font-size: 26px; text-align: center; color: #1f2937; }
        p.subtitle { text-align: center; color: #64748b; margin: 8px 0 24px; }
        .error-message { color: #b91c1c; font-size: 14px; min-height: 20px; margin-bottom: 8px; }
        label { display: block; font-weight: 600; margin-bottom: 6px; color: #334155; }
        input[type=password] {
            width: 100%;
            padding: 10px 12px;
            border: 1px solid #cbd5e1;
            border-radius: 8px;
            font-size: 15px;
        }
        button {
            width: 100%;
            margin-top: 18px;
            padding: 12px;
            border: none;
            border-radius: 8px;
            background: #2563eb;
            color: #fff;
            font-size: 16px;
            font-weight: 600;
            cursor: pointer;
        }
    </style>
</head>
<body>
    <div class="login-container">
        <h1>🎓 EduDiff</h1>
        <p class="subtitle">Ingresa la contraseña para continuar</p>
        <form method="POST" action="/login">
            <div class="error-message">{{.Error}}</div>
            <label for="password">Contraseña</label>
            <input type="password" id="password" name="password" required autofocus>
            <button type="submit">Entrar</button>
        </form>
    </div>
</body>
</html>`

// Login error codes carried in the ?error= query parameter.
const (
	LoginErrorRequired = "required"
	LoginErrorInvalid  = "invalid"
)

var loginErrorMessages = map[string]string{
	LoginErrorRequired: "La contraseña es obligatoria",
	LoginErrorInvalid:  "Contraseña incorrecta",
}

// LoginPageData is the login template input.
type LoginPageData struct {
	Error string
}

var loginTemplate = template.Must(template.New("login").Parse(loginPageHTML))

// RenderLoginPage writes the login page.
func RenderLoginPage(w io.Writer, data LoginPageData) error {
	return loginTemplate.Execute(w, data)
}

// HandleLoginPage renders the login form. Only known error codes are
// shown, so the page never echoes arbitrary query text.
func HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")

	data := LoginPageData{Error: loginErrorMessages[r.URL.Query().Get("error")]}
	if err := RenderLoginPage(w, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
