// guardcheck runs the content guard over text from a file or stdin, so rule
// changes can be tried out before they are deployed.
//
//	guardcheck -mode sanitize prompt.txt
//	echo "A STORY!!!" | guardcheck -mode story -child strict
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"storyforge/internal/guard"
	"storyforge/internal/infra"
)

func main() {
	mode := flag.String("mode", "sanitize", "check to run: sanitize or story")
	rulesPath := flag.String("rules", "./config/guardrails.yaml", "guardrail rules file")
	profile := flag.String("profile", "", "profile whose rule overrides apply")
	child := flag.String("child", "", "child-mode filter level: strict, standard or relaxed")
	flag.Parse()

	text, err := readInput(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "guardcheck: %v\n", err)
		os.Exit(2)
	}

	logger := infra.NewLogger("production")
	g := guard.New(guard.NewRuleStore(*rulesPath, logger), logger, nil)

	switch *mode {
	case "sanitize":
		cleaned, err := g.Sanitize(text, "story")
		if err != nil {
			var verr *guard.ViolationError
			if errors.As(err, &verr) {
				printViolations(verr.Violations)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stderr, "guardcheck: %v\n", err)
			os.Exit(2)
		}
		fmt.Println(cleaned)
	case "story":
		violations := g.CheckStory(text, *profile, *child != "", guard.NormalizeFilterLevel(*child))
		if len(violations) > 0 {
			printViolations(violations)
			os.Exit(1)
		}
		fmt.Println("clean")
	default:
		fmt.Fprintf(os.Stderr, "guardcheck: unknown mode %q\n", *mode)
		os.Exit(2)
	}
}

func readInput(path string) (string, error) {
	if path == "" {
		raw, err := io.ReadAll(os.Stdin)
		return string(raw), err
	}
	raw, err := os.ReadFile(path)
	return string(raw), err
}

func printViolations(violations []guard.Violation) {
	for _, v := range violations {
		fmt.Printf("%s\t%s\n", v.Category, v.Detail)
	}
}
