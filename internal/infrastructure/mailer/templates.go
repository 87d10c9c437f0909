package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/dapursambal/storefront/pkg/money"
)

// Transactional template names
const (
	TemplateConfirmation        = "confirmation"
	TemplateWelcome             = "welcome"
	TemplateOrderReceipt        = "order_receipt"
	TemplateOrderNotification   = "order_notification"
	TemplateContactNotification = "contact_notification"
)

var subjects = map[string]string{
	TemplateConfirmation:        "Konfirmasi langganan newsletter Dapur Sambal",
	TemplateWelcome:             "Selamat datang di Dapur Sambal!",
	TemplateOrderReceipt:        "Pembayaran pesanan diterima",
	TemplateOrderNotification:   "Pesanan baru masuk",
	TemplateContactNotification: "Pesan kontak baru",
}

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"idr": money.FormatIDR,
}

var transactional = loadTemplates()

func loadTemplates() map[string]*template.Template {
	layout := template.Must(template.New("layout").Funcs(funcs).ParseFS(templateFS, "templates/layout.html"))
	out := make(map[string]*template.Template, len(subjects))
	for name := range subjects {
		t := template.Must(template.Must(layout.Clone()).ParseFS(templateFS, "templates/"+name+".html"))
		out[name] = t
	}
	return out
}

// Render executes a transactional template inside the shared layout.
// Subject is filled in from the template name.
func Render(name string, data map[string]interface{}) (subject, html string, err error) {
	t, ok := transactional[name]
	if !ok {
		return "", "", fmt.Errorf("unknown mail template %q", name)
	}
	subject = subjects[name]
	if data == nil {
		data = map[string]interface{}{}
	}
	data["Subject"] = subject

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return subject, buf.String(), nil
}
