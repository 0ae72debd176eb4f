package chat

import "strings"

// AboutTitle heads the about page.
const AboutTitle = "The Philosophy of Mattr"

// aboutMarkdown is the body of the about page.
const aboutMarkdown = `# The Philosophy of Mattr

Mattr is an attempt to operationalize one of the most significant achievements in modern moral philosophy: Derek Parfit's *Triple Theory*.

## Climbing the Mountain

In his magnum opus *On What Matters*, Derek Parfit argued that the three major traditions of Western ethics are not rival theories fighting for supremacy. Instead, they are like three climbers scaling the same mountain from different sides.

Parfit believed that if we look closely, these distinct paths converge at the summit. He combined them into a single, unified framework known as the **Triple Theory**.

| Framework | Principle |
|-----------|-----------|
| **Rule Consequentialism** | Principles whose universal acceptance would make things go best. |
| **Kantian Contractualism** | Principles that everyone could rationally will to be universal laws. |
| **Scanlonian Contractualism** | Principles that no one could reasonably reject. |

## The Superior Secular Ethic

In an increasingly secular world, we often face the "crisis of foundations": without religious dogma, are moral judgments just matters of opinion?

Parfit's work provides a robust "Yes" to objective morality without relying on the supernatural. It suggests that **ethics is a matter of reason, not just preference**.

By triangulating these three perspectives, the Triple Theory filters out biases. It prevents the "end justifies the means" ruthlessness of pure utilitarianism, and the rigid inflexibility of pure duty-based ethics. It asks us to justify our actions in a way that no reasonable person could object to, a standard that bridges cultural and personal divides.
`

// parfitQuote closes the about page.
const parfitQuote = `"An act is wrong just when such acts are disallowed by some principle that is one of the principles whose being universal laws would make things go best, one of the only principles whose being universal laws everyone could rationally will, and a principle that no one could reasonably reject."`

const parfitAttribution = "DEREK PARFIT, ON WHAT MATTERS"

// renderAbout renders the about page at width.
func (m Model) renderAbout(width int) string {
	var sb strings.Builder
	sb.WriteString(m.md.Render(aboutMarkdown, width))
	sb.WriteString("\n\n")

	quoteWidth := width - 4
	if quoteWidth < 10 {
		quoteWidth = 10
	}
	sb.WriteString(m.styles.Quote.Width(quoteWidth).Render(parfitQuote))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Width(quoteWidth).Render(parfitAttribution))
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Muted.Render("esc or ctrl+o: back to chat"))
	return sb.String()
}
