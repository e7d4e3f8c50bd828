package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/vitaehq/vitae/pkg/client"
)

var suggestedQuestions = []string{
	"Summarize this person's experience",
	"What technical skills do they have?",
	"Where did they study?",
	"What are their top achievements?",
	"Are they a good fit for a backend role?",
}

// exchange is one question/answer pair. History lives in the client;
// the server keeps no conversation state.
type exchange struct {
	question string
	answer   string
}

func main() {
	var serverURL string
	var namespace string
	var resumePath string

	flag.StringVar(&serverURL, "server", "http://localhost:8000", "Resume chat API URL")
	flag.StringVar(&namespace, "namespace", "default", "Namespace holding the resume")
	flag.StringVar(&resumePath, "resume", "", "PDF resume to upload before chatting")
	flag.Parse()

	if err := run(serverURL, namespace, resumePath); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(serverURL, namespace, resumePath string) error {
	ctx := context.Background()
	api := client.New(serverURL)

	health, err := api.Health(ctx)
	if err != nil {
		return fmt.Errorf("cannot reach %s: %w", serverURL, err)
	}
	color.Green("✓ %s", health.Message)

	if resumePath != "" {
		spinner := getSpinner(" Ingesting resume...")
		res, err := api.Upload(ctx, resumePath, namespace)
		spinner.Finish()
		fmt.Println()

		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		color.Green("✓ %s (%d chunks)", res.Message, res.ChunksCount)
	}

	color.Cyan("\nChat with the resume (type 'exit' to quit, 'reset' to clear the namespace)")
	color.Blue("Try one of:")
	for _, q := range suggestedQuestions {
		fmt.Printf("  - %s\n", q)
	}

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	var history []exchange

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "history":
			if len(history) == 0 {
				color.Blue("No questions asked yet.")
				continue
			}
			for _, ex := range history {
				userPrompt("You: %s\n", ex.question)
				assistantPrompt("Assistant: %s\n\n", ex.answer)
			}
			continue
		case "reset":
			msg, err := api.Reset(ctx, namespace)
			if err != nil {
				color.Red("Failed to reset: %v\n", err)
				continue
			}
			color.Green("✓ %s", msg)
			continue
		}

		spinner := getSpinner(" Thinking...")
		res, err := api.Ask(ctx, namespace, question)
		spinner.Finish()
		fmt.Println()

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		history = append(history, exchange{question: question, answer: res.Answer})
		assistantPrompt("Assistant: %s\n", res.Answer)

		if len(res.Sources) > 0 {
			color.Blue("\nSources:")
			for _, src := range res.Sources {
				fmt.Printf("  [page %d] %s\n", src.Page, excerpt(src.Text, 80))
			}
		}
	}

	return nil
}

func excerpt(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
