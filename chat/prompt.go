package chat

import (
	"fmt"
	"strings"
)

const sectionRule = "============================================================"

func systemPrompt(product string) string {
	return fmt.Sprintf("You are a %s support expert. Answer customer questions accurately and concisely. "+
		"When knowledge base material is supplied, ground your answer in it. "+
		"If the material does not cover the question, say that you are not sure and suggest creating a support ticket.", product)
}

const formattingRules = `CRITICAL FORMATTING REQUIREMENTS:
1. Each step or point MUST be on a SEPARATE LINE
2. Use numbered lists (1., 2., 3., etc.) for sequential steps
3. Use bullet points (•) for non-sequential items
4. Add a blank line between major sections
5. Keep explanations clear and well-structured`

// FormatKnowledge joins context blocks in order, each under a section marker
// naming its method.
func FormatKnowledge(blocks []ContextBlock) string {
	var sb strings.Builder
	for _, block := range blocks {
		sb.WriteString("\n")
		sb.WriteString(sectionRule)
		sb.WriteString("\n")
		sb.WriteString(block.Method)
		sb.WriteString("\n")
		sb.WriteString(sectionRule)
		sb.WriteString("\n")
		sb.WriteString(block.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatAugmentedPrompt(product string, q Question, blocks []ContextBlock) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a %s support expert answering a customer question.\n\n", product)
	if strings.TrimSpace(q.Context) != "" {
		sb.WriteString("ORIGINAL TICKET CONTEXT:\n")
		sb.WriteString(q.Context)
		sb.WriteString("\n\n")
	}
	sb.WriteString("KNOWLEDGE BASE:\n")
	sb.WriteString(FormatKnowledge(blocks))
	sb.WriteString("\nQUESTION: ")
	sb.WriteString(q.Text)
	sb.WriteString("\n\n")
	sb.WriteString(formattingRules)
	sb.WriteString("\n\nProvide a clear, helpful answer using the knowledge base information. Put EACH step on its own line with proper numbering.\n\nAnswer:")
	return sb.String()
}

func formatGeneralPrompt(product string, q Question) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a %s support expert answering a customer question.\n\n", product)
	if strings.TrimSpace(q.Context) != "" {
		sb.WriteString("ORIGINAL TICKET CONTEXT:\n")
		sb.WriteString(q.Context)
		sb.WriteString("\n\n")
	}
	sb.WriteString("QUESTION: ")
	sb.WriteString(q.Text)
	sb.WriteString("\n\n")
	sb.WriteString(formattingRules)
	fmt.Fprintf(&sb, "\n\nProvide a clear, helpful answer based on your %s product knowledge. Put EACH step on its own line.\n\nAnswer:", product)
	return sb.String()
}

func formatSemanticContext(docs []Document) string {
	var sb strings.Builder
	sb.WriteString("\n\nRELATED DOCUMENTATION:\n")
	for i, doc := range docs {
		fmt.Fprintf(&sb, "Document %d:\n", i+1)
		if len(doc.Insight.Topics) > 0 {
			sb.WriteString("Topics: " + strings.Join(doc.Insight.Topics, ", ") + "\n")
		}
		if len(doc.Insight.RelatedDocuments) > 0 {
			titles := make([]string, 0, len(doc.Insight.RelatedDocuments))
			for _, related := range doc.Insight.RelatedDocuments {
				if related.Title != "" {
					titles = append(titles, related.Title)
				}
			}
			if len(titles) > 0 {
				sb.WriteString("Related: " + strings.Join(titles, ", ") + "\n")
			}
		}
		sb.WriteString(truncate(doc.Content, semanticExcerptLength))
		sb.WriteString("\n\n")
	}
	return sb.String()
}
