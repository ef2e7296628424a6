package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"planningpoker/internal/client"
	"planningpoker/internal/poker"
)

func main() {
	home, _ := os.UserHomeDir()
	fs := flag.NewFlagSet("poker", flag.ExitOnError)
	server := fs.String("server", getenv("POKER_SERVER", "http://localhost:8080"), "API base URL")
	profilePath := fs.String("profile", filepath.Join(home, ".config", "planningpoker", "profile.json"), "profile file")
	name := fs.String("name", "", "display name")
	observer := fs.Bool("observer", false, "join as an observer")

	if len(os.Args) < 2 {
		usage()
	}
	command := os.Args[1]
	_ = fs.Parse(os.Args[2:])

	profile, err := client.LoadProfile(*profilePath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	api := client.New(*server, nil)

	switch command {
	case "create":
		sessionName := strings.Join(fs.Args(), " ")
		creator := *name
		if creator == "" {
			creator = profile.CreatorName
		}
		result, err := api.CreateSession(context.Background(), sessionName, creator)
		if err != nil {
			log.Fatalf("create session: %v", err)
		}
		profile.CreatorName = creator
		profile.OwnerToken = result.OwnerID
		profile.ParticipantID = ""
		if err := client.SaveProfile(*profilePath, profile); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(result.SessionID)

	case "watch":
		if fs.NArg() != 1 {
			usage()
		}
		if err := watch(api, fs.Arg(0), *profilePath, profile, *name, *observer); err != nil {
			log.Fatalf("%v", err)
		}

	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: poker create [-name creator] <session name>")
	fmt.Fprintln(os.Stderr, "       poker watch [-name you] [-observer] <session id>")
	os.Exit(2)
}

func watch(api *client.Client, sessionID, profilePath string, profile client.Profile, name string, observer bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller := client.NewPoller(api, sessionID, profile, client.Options{
		OnCelebrate: func(c poker.Consensus) {
			fmt.Printf("*** consensus: everyone voted %d ***\n", c.Value)
		},
	})
	if err := poller.Start(ctx); err != nil {
		return err
	}
	if !poller.IsOwner() && name != "" {
		if _, err := poller.Join(ctx, name, observer); err != nil {
			return fmt.Errorf("join: %w", err)
		}
	}
	if err := client.SaveProfile(profilePath, poller.Profile()); err != nil {
		log.Printf("save profile: %v", err)
	}

	go readCommands(ctx, poller)

	err := poller.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readCommands turns stdin lines into intents: a vote ("5", "NA"), "reset",
// "add <title>", "go <index>", "drop <index>", "clear" or "show".
func readCommands(ctx context.Context, poller *client.Poller) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		command, arg, _ := strings.Cut(line, " ")
		var err error
		switch command {
		case "":
			continue
		case "reset":
			err = poller.ResetVotes(ctx)
		case "add":
			err = poller.AddStory(ctx, arg)
		case "go":
			err = withIndex(arg, func(i int) error { return poller.ChangeStory(ctx, i) })
		case "drop":
			err = withIndex(arg, func(i int) error { return poller.RemoveStory(ctx, i) })
		case "clear":
			err = poller.RemoveAllStories(ctx)
		case "show":
		default:
			var vote *poker.Vote
			vote, err = poker.ParseVote(command)
			if err == nil {
				err = poller.Vote(ctx, vote)
			}
		}
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		printState(poller)
	}
}

func withIndex(arg string, fn func(int) error) error {
	index, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return fmt.Errorf("story index %q: %w", arg, err)
	}
	return fn(index)
}

func printState(poller *client.Poller) {
	session := poller.Session()
	view, ok := poller.View()
	if session == nil || !ok {
		return
	}
	fmt.Printf("%s (expires in %s)\n", session.Name, view.TimeRemaining)
	if view.ActiveStory != nil {
		fmt.Printf("story: %s\n", view.ActiveStory.Title)
	}
	for _, p := range session.Participants {
		mark := "…"
		switch {
		case p.IsObserver:
			mark = "observer"
		case p.Vote != nil && view.ShouldShowResults:
			mark = p.Vote.String()
		case p.Vote != nil:
			mark = "voted"
		}
		fmt.Printf("  %-20s %s\n", p.Name, mark)
	}
	if view.ShouldShowResults && view.Consensus != nil {
		fmt.Printf("consensus %d (%d%%), average %.1f\n", view.Consensus.Value, view.Consensus.Percentage, view.Average)
	}
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
