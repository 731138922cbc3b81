package assistant

import (
	"context"
	"strings"
)

// ChatMessage is one turn sent to a completion provider
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is a provider reply
type Completion struct {
	Content string
	Tokens  int
	Model   string
}

// Completer produces the assistant's reply to a conversation
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage) (*Completion, error)
	Name() string
}

type cannedReply struct {
	keywords []string
	reply    string
}

var cannedReplies = []cannedReply{
	{
		keywords: []string{"hello", "hi ", "greetings"},
		reply:    "Hello! I am your CRM assistant. How can I help you today?",
	},
	{
		keywords: []string{"customer", "crm"},
		reply: "Customer management lets you:\n\n" +
			"- Register customers with custom fields for your business\n" +
			"- Segment customers by purchase behaviour\n" +
			"- Track every interaction and follow-up\n" +
			"- Review the full history of each customer",
	},
	{
		keywords: []string{"pipeline", "opportunit", "deal"},
		reply: "Sales pipelines let you:\n\n" +
			"- Define stages that match your sales process\n" +
			"- Move opportunities between stages and keep their history\n" +
			"- Set close probabilities and expected durations per stage\n" +
			"- Mark stages as won or lost to close deals",
	},
	{
		keywords: []string{"dashboard", "metric", "report"},
		reply: "The dashboard summarizes active customers, open and won opportunities, " +
			"open pipeline value and recent interactions for the selected period.",
	},
	{
		keywords: []string{"help", "support"},
		reply: "You can ask me about customers, interactions, pipelines, opportunities or the dashboard. " +
			"What would you like to know?",
	},
}

const cannedFallback = "Thanks for your question. I can help with customer management, interactions, " +
	"sales pipelines and the dashboard. Ask me about any of them."

// CannedCompleter answers from a keyword table. It is used when no provider is configured.
type CannedCompleter struct{}

func (CannedCompleter) Name() string { return "canned" }

func (CannedCompleter) Complete(ctx context.Context, messages []ChatMessage) (*Completion, error) {
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			last = strings.ToLower(messages[i].Content) + " "
			break
		}
	}

	for _, c := range cannedReplies {
		for _, kw := range c.keywords {
			if strings.Contains(last, kw) {
				return &Completion{Content: c.reply, Model: "canned"}, nil
			}
		}
	}
	return &Completion{Content: cannedFallback, Model: "canned"}, nil
}
