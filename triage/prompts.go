package triage

import (
	"fmt"
	"strings"
)

const rule = "================================================================================"

func classificationPrompt(product, ticket string) string {
	return fmt.Sprintf(`You are a %[1]s support ticket classifier. Analyze this ticket and classify it.

TICKET:
%[2]s

SEVERITY LEVELS:

S1 - CRITICAL INCIDENT:
Examples: "application is down", "application not accessible", "production outage",
"system crash", "data loss", "complete system failure"
Impact: Multiple users affected, production blocked, business stopped

S2 - IMPORTANT INCIDENT:
Examples: "data source not working", "jobs stuck", "cannot login", "access denied",
"rules not running", "connectivity issue", "performance degraded"
Impact: Major functionality broken, workflow impacted, workaround may exist

S3 - REGULAR PROBLEM:
Examples: "how to configure", "question about feature", "documentation request",
"feature request", "minor bug with workaround", "general inquiry"
Impact: Minimal interruption, normal operation continues

TICKET TYPES:
BUG - System error, defect, broken functionality, unexpected behavior
ENHANCEMENT - New feature request, improvement suggestion, capability addition
QUESTION - How-to query, clarification, usage guidance, documentation request
REQUEST - Configuration change, access request, setup assistance, administrative task

CLASSIFICATION RULES:
1. Keywords "down", "not accessible", "error", "crash" usually mean S1 or S2
2. Keywords "stuck", "not working", "access denied" usually mean S2
3. Keywords "how to", "question", "configure", "request" usually mean S3
4. If uncertain between severities, choose the HIGHER severity
5. Type BUG only if something is actually broken or erroring

Respond EXACTLY in this format (no extra text):
SEVERITY: S1
TYPE: BUG
REASONING: The application is completely down for production users`, product, ticket)
}

func explanationPrompt(product, ticket string) string {
	return fmt.Sprintf(`You are analyzing a support ticket for a %[1]s support agent.

TICKET:
%[2]s

Task: Explain IN FACTUAL TERMS what the customer is requesting or reporting. This explanation is for the SUPPORT AGENT, not the customer.

Requirements:
- State WHAT they are asking for, not how they might be feeling
- Use clear, technical language appropriate for support agents
- Name the system or product, the action and the goal
- Keep it to 2-3 sentences maximum
- Do NOT add empathetic language or assumptions about feelings

Examples:
BAD: "I understand you're frustrated that your account isn't working..."
GOOD: "The customer is requesting decommissioning of an account on the legacy system."

BAD: "It must be difficult to have this issue..."
GOOD: "The customer reports that the application is not accessible, blocking their team from generating reports."

Your factual explanation (2-3 sentences):`, product, ticket)
}

func solutionPrompt(product, ticket string, severity Severity, knowledge string) string {
	cfg := severityConfigs[severity]
	return fmt.Sprintf(`You are a %[1]s technical support expert providing a solution.

TICKET ISSUE:
%[2]s

PRIORITY: %[3]s - %[4]s

KNOWLEDGE BASE INFORMATION:
%[5]s

Task: Provide a clear, actionable solution based on the knowledge base.

IMPORTANT FORMATTING RULES:
1. Each step MUST be on a NEW LINE
2. Use numbered lists (1., 2., 3., etc.) for sequential steps
3. Add a blank line between major sections
4. If there are sub-steps, indent them with "   - "

Format your response as:

**IMMEDIATE SOLUTION:**

1. First step here
   - Sub-step if needed

2. Second step here

**REFERENCE DOCUMENTATION:**
[Mention relevant articles or documentation]

**VERIFICATION:**
[How to confirm the issue is resolved]

If the knowledge base doesn't have a complete solution, say: "Based on available documentation, I recommend consulting with our engineering team for the most accurate resolution. I will escalate this and update you shortly."

Your solution:`, product, ticket, severity, cfg.Name, knowledge)
}

func featureRequestPrompt(ticket string) string {
	return fmt.Sprintf(`You are a product manager creating a Future Request (FR) summary.

ENHANCEMENT REQUEST:
%s

Create a structured FR summary for the product backlog.

Format:

**FR TITLE:**
[Short, descriptive title]

**BUSINESS JUSTIFICATION:**
[Why is this needed? What problem does it solve?]

**DETAILED DESCRIPTION:**
[What exactly is being requested?]

**EXPECTED BENEFIT:**
[How will this improve the product or user experience?]

**PRIORITY RECOMMENDATION:**
[Hotlist (Critical) / Sprint (High) / Backlog (Low) with brief reasoning]

Your FR summary:`, ticket)
}

func redirectMessage(product, category, email string) string {
	return fmt.Sprintf(`Thank you for reaching out to %[1]s Support.

This help desk is specifically for %[1]s product-related questions.

Your request appears to be related to %[2]s.

**Please submit your request to:** %[3]s

Feel free to contact us again for %[1]s product-related issues.

Best regards,
%[1]s Support Team`, product, titleCase(category), email)
}

func acknowledgment(product string, severity Severity, ticketType Type, explanation, timestamp string) string {
	cfg := severityConfigs[severity]

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%s\nTICKET ACKNOWLEDGMENT\n%s\n\n", rule, rule)
	fmt.Fprintf(&sb, "**ISSUE SUMMARY:**\n%s\n\n", explanation)
	sb.WriteString("**TICKET CLASSIFICATION:**\n")
	fmt.Fprintf(&sb, "• Severity: %s - %s\n", severity, cfg.Name)
	fmt.Fprintf(&sb, "• Type: %s - %s\n", ticketType, typeDescriptions[ticketType])
	fmt.Fprintf(&sb, "• Priority: %s\n\n", cfg.Priority)
	sb.WriteString("**SERVICE LEVEL AGREEMENT (SLA):**\n")
	fmt.Fprintf(&sb, "• Response Time: %s\n", cfg.SLAResponse)
	fmt.Fprintf(&sb, "• Resolution Target: %s\n\n", cfg.SLAResolution)

	switch severity {
	case SeverityCritical:
		sb.WriteString(`**IMMEDIATE ACTIONS BEING TAKEN:**
✓ Escalated to Product Engineering Team for immediate investigation
✓ Setting up dedicated bridge call for real-time collaboration
✓ This is being handled as our TOP PRIORITY

**NEXT STEPS:**
• You will receive bridge call details shortly
• Please join the call so we can resolve this as quickly as possible
• A senior engineer will be assigned immediately

We understand the critical nature of this issue and are committed to resolving it urgently.
`)
	case SeverityImportant:
		sb.WriteString(`**ACTIONS BEING TAKEN:**
✓ Support team is actively investigating the issue
✓ Working to identify root cause and provide resolution
✓ You will receive regular updates on progress

**NEXT STEPS:**
• Our team will provide updates as we make progress
• If we need additional information, we'll reach out to you
• Expected resolution within the SLA timeframe

We appreciate your patience as we work to resolve this matter promptly.
`)
	default:
		sb.WriteString(`**ACTIONS BEING TAKEN:**
✓ Your request has been logged and assigned to our support team
✓ We will review the details and respond with required information

**NEXT STEPS:**
• Our team will investigate and provide a detailed response
• If we need any additional information, we'll contact you
• We aim to resolve this within the SLA timeframe

Thank you for your patience.
`)
	}

	fmt.Fprintf(&sb, "\n**STATUS:** Acknowledged and Assigned\n**TIMESTAMP:** %s\n\nBest regards,\n%s Support Team\n%s\n", timestamp, product, rule)
	return sb.String()
}

func titleCase(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
