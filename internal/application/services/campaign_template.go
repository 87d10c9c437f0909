package services

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/domain/ports"
	"github.com/dapursambal/storefront/pkg/errors"
)

// RecipientData is what campaign templates can reference
type RecipientData struct {
	Name           string
	Email          string
	UnsubscribeURL string
	SiteURL        string
}

// compiledCampaign holds parsed subject and body templates for one run
type compiledCampaign struct {
	subject *texttemplate.Template
	body    *htmltemplate.Template
}

func compileCampaign(c *models.Campaign) (*compiledCampaign, error) {
	subject, err := texttemplate.New("subject").Option("missingkey=error").Parse(c.Subject)
	if err != nil {
		return nil, errors.NewValidationError("subject", "Subject template is invalid: "+err.Error())
	}
	body, err := htmltemplate.New("body").Option("missingkey=error").Parse(c.BodyTemplate)
	if err != nil {
		return nil, errors.NewValidationError("body_template", "Body template is invalid: "+err.Error())
	}
	return &compiledCampaign{subject: subject, body: body}, nil
}

func (cc *compiledCampaign) render(data RecipientData) (string, string, error) {
	var subject, body bytes.Buffer
	if err := cc.subject.Execute(&subject, data); err != nil {
		return "", "", errors.NewValidationError("subject", err.Error())
	}
	if err := cc.body.Execute(&body, data); err != nil {
		return "", "", errors.NewValidationError("body_template", err.Error())
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}

func recipientData(sub *models.Subscriber, siteURL string) RecipientData {
	return RecipientData{
		Name:           sub.Name,
		Email:          sub.Email,
		UnsubscribeURL: siteURL + "/newsletter/unsubscribe/" + sub.UnsubscribeToken,
		SiteURL:        siteURL,
	}
}

func (cc *compiledCampaign) message(sub *models.Subscriber, siteURL string) (ports.Message, error) {
	subject, html, err := cc.render(recipientData(sub, siteURL))
	if err != nil {
		return ports.Message{}, err
	}
	return ports.Message{
		To:       sub.Email,
		ToName:   sub.Name,
		Subject:  subject,
		HTMLBody: html,
		Headers: map[string]string{
			"List-Unsubscribe":      "<" + siteURL + "/api/newsletter/unsubscribe/" + sub.UnsubscribeToken + ">",
			"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
		},
	}, nil
}
