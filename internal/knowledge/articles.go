// ABOUTME: Built-in starter articles used when no external knowledge base is wired
// ABOUTME: Covers the most common self-serve questions

package knowledge

// DefaultArticles is the starter library loaded when no external source
// is configured. Real deployments replace this with their own content.
func DefaultArticles() []Article {
	return []Article{
		{
			ID:    "kb-password-reset",
			Title: "How to reset your password",
			Body: `## Resetting your password

1. Open the sign-in page and choose **Forgot password**.
2. Enter the email address on your account.
3. Follow the link in the email within 30 minutes.

If the email never arrives, check your spam folder or contact support.`,
			Tags: []string{"password", "login", "account"},
		},
		{
			ID:    "kb-export-data",
			Title: "How to export your data",
			Body: `## Exporting your data

Go to **Settings > Account > Export**. Exports are generated in the
background and emailed to you as a zip archive, usually within an hour.`,
			Tags: []string{"export", "data", "download"},
		},
		{
			ID:    "kb-billing-cycle",
			Title: "Understanding your billing cycle",
			Body: `## Billing cycles

Invoices are issued on the same calendar day you first subscribed. Plan
changes are prorated on the next invoice. Receipts are available under
**Settings > Billing > History**.`,
			Tags: []string{"billing", "invoice", "payment", "subscription"},
		},
		{
			ID:    "kb-invite-team",
			Title: "How to invite teammates",
			Body: `## Inviting your team

Workspace admins can invite teammates under **Settings > Members**.
Invitations expire after 7 days and can be re-sent at any time.`,
			Tags: []string{"team", "invite", "members"},
		},
	}
}
