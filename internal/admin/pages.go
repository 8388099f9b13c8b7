package admin

import (
	"net/http"

	"github.com/adambn/recruitly/pkg"
)

// The portal frontend is rendered elsewhere - these shells only exist so
// the admin paths resolve behind the session gate.

const adminPageShell = `<!DOCTYPE html>
<html lang="he" dir="rtl">
<head><meta charset="utf-8"><title>מרכז גיוס</title></head>
<body><main id="admin-root">לוח ניהול</main></body>
</html>`

const loginPageShell = `<!DOCTYPE html>
<html lang="he" dir="rtl">
<head><meta charset="utf-8"><title>כניסת מנהל</title></head>
<body>
<main id="login-root">
<form method="post" action="/api/admin/login">
<input name="username" placeholder="שם משתמש">
<input name="password" type="password" placeholder="סיסמה">
<button type="submit">כניסה</button>
</form>
</main>
</body>
</html>`

func (handler *Handler) HandleAdminPage(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteResponse(w, pkg.ContentType.HTML, adminPageShell, http.StatusOK)
}

func (handler *Handler) HandleLoginPage(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteResponse(w, pkg.ContentType.HTML, loginPageShell, http.StatusOK)
}
