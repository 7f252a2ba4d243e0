package notification

import (
	"fmt"
	"html"

	"github.com/testiflow-api/internal/infrastructure/mail"
)

const product = "TestiFlow"

func VerificationEmail(to, name, code string) mail.Message {
	return mail.Message{
		To:      to,
		ToName:  name,
		Subject: "Verify your " + product + " account",
		Text: fmt.Sprintf("Hi %s,\n\nYour verification code is %s. It expires in 24 hours.\n\n"+
			"If you didn't create an account, ignore this email.", name, code),
		HTML: fmt.Sprintf(`<h2>Welcome to %s!</h2>
<p>Hi %s,</p>
<p>Your verification code is <strong style="font-size: 24px;">%s</strong></p>
<p>This code expires in 24 hours.</p>
<p>If you didn't create an account, ignore this email.</p>`, product, html.EscapeString(name), code),
	}
}

func WelcomeEmail(to, name string) mail.Message {
	return mail.Message{
		To:      to,
		ToName:  name,
		Subject: "Welcome to " + product,
		Text:    fmt.Sprintf("Hi %s,\n\nYour email is verified. Create your first space and start collecting testimonials.", name),
		HTML: fmt.Sprintf(`<h2>You're all set, %s!</h2>
<p>Your email is verified. Create your first space and start collecting testimonials.</p>`, html.EscapeString(name)),
	}
}

func PasswordResetEmail(to, name, link string) mail.Message {
	return mail.Message{
		To:      to,
		ToName:  name,
		Subject: "Reset your " + product + " password",
		Text: fmt.Sprintf("Hi %s,\n\nReset your password here: %s\n\nThe link expires in 1 hour. "+
			"If you didn't ask for a reset, ignore this email.", name, link),
		HTML: fmt.Sprintf(`<p>Hi %s,</p>
<p><a href="%s">Reset your password</a></p>
<p>The link expires in 1 hour. If you didn't ask for a reset, ignore this email.</p>`,
			html.EscapeString(name), html.EscapeString(link)),
	}
}

func PasswordChangedEmail(to, name string) mail.Message {
	return mail.Message{
		To:      to,
		ToName:  name,
		Subject: "Your " + product + " password was changed",
		Text: fmt.Sprintf("Hi %s,\n\nYour password was just changed. "+
			"If this wasn't you, reset your password immediately.", name),
		HTML: fmt.Sprintf(`<p>Hi %s,</p>
<p>Your password was just changed. If this wasn't you, reset your password immediately.</p>`, html.EscapeString(name)),
	}
}
