// internal/notify/templates.go
package notify

import (
	"fmt"
	"strings"
	"time"
)

type noticeTemplate struct {
	subject string
	body    string
}

var templates = map[Kind]noticeTemplate{
	KindUpcoming: {
		subject: "Upcoming recurring deal for {{merchantName}}",
		body:    "A recurring deal for {{merchantName}} ({{amount}} {{currency}}) is scheduled for {{dueAt}}.",
	},
	KindGenerated: {
		subject: "Recurring deal {{dealNumber}} generated",
		body:    "Deal {{dealNumber}} for {{merchantName}} was generated ({{sequence}}{{ofTotal}}).",
	},
	KindCompleted: {
		subject: "Recurring series completed",
		body:    "The recurring series for {{merchantName}} finished with deal {{dealNumber}} ({{sequence}}{{ofTotal}}).",
	},
	KindAutoPaused: {
		subject: "Recurring series paused after repeated failures",
		body:    "Generation for {{merchantName}} failed repeatedly and the series was paused. Review it and resume when ready.",
	},
}

func noticeData(n Notice) map[string]interface{} {
	data := map[string]interface{}{
		"merchantName": n.MerchantName,
		"dealNumber":   n.DealNumber,
		"sequence":     n.Sequence,
		"currency":     n.Currency,
	}
	if n.Amount != nil {
		data["amount"] = fmt.Sprintf("%.2f", *n.Amount)
	}
	if n.TotalCount != nil {
		data["ofTotal"] = fmt.Sprintf(" of %d", *n.TotalCount)
	}
	if n.DueAt != nil {
		data["dueAt"] = n.DueAt.UTC().Format(time.RFC1123)
	}
	return data
}

// Simplified template rendering with placeholder removal for missing values
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if i, ok := v.(int); ok {
			value = fmt.Sprintf("%d", i)
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	// Remove any remaining placeholders (missing values)
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}
