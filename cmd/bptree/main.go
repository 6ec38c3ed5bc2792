package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
	log "github.com/sirupsen/logrus"

	"github.com/jmszg/bptree"
	"github.com/jmszg/bptree/engine"
)

func usage(w io.Writer) {
	io.WriteString(w, `
Statements end with ';' and may span several lines:
	CREATE DATABASE <name>
	USE <name>
	CREATE TABLE [<db>.]<table> (<column> <type> [(<length>)] [constraints], ...)
	INSERT INTO [<db>.]<table> [(<column>, ...)] VALUES (<value>, ...), ...
	SELECT * | <column>, ... FROM [<db>.]<table> [WHERE <condition>] [LIMIT <n>]
	DELETE FROM [<db>.]<table> [WHERE <condition>]
	DROP DATABASE <name>
	DROP TABLE [<db>.]<table>

Commands:
	set-log-level <debug|info|warn>
	show-tree <db>.<table>.<column>
	check
	stats
	help
	exit
`[1:])
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("CREATE",
		readline.PcItem("DATABASE"),
		readline.PcItem("TABLE"),
	),
	readline.PcItem("USE"),
	readline.PcItem("INSERT INTO"),
	readline.PcItem("SELECT"),
	readline.PcItem("DELETE FROM"),
	readline.PcItem("DROP",
		readline.PcItem("DATABASE"),
		readline.PcItem("TABLE"),
	),
	readline.PcItem("set-log-level",
		readline.PcItem("debug"),
		readline.PcItem("info"),
		readline.PcItem("warn"),
	),
	readline.PcItem("show-tree"),
	readline.PcItem("check"),
	readline.PcItem("stats"),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

const (
	prompt         = "\033[31m»\033[0m "
	continuePrompt = "\033[31m…\033[0m "
)

func main() {
	dir := flag.String("dir", "db", "data directory")
	degree := flag.Int("degree", bptree.DefaultDegree, "minimum degree of the index trees")
	level := flag.String("log-level", "warn", "log level (debug, info, warn)")
	flag.Parse()

	log.SetOutput(os.Stderr)
	setLogLevel(*level)

	l, err := readline.NewEx(&readline.Config{
		Prompt:       prompt,
		HistoryFile:  filepath.Join(os.TempDir(), "bptree-readline.tmp"),
		AutoComplete: completer,
	})
	if err != nil {
		log.Fatal(err)
	}
	db, err := engine.Open(*dir, &engine.Options{
		Degree:      *degree,
		LockTimeout: engine.DefaultOptions.LockTimeout,
		Logger:      log.StandardLogger(),
	})
	if err != nil {
		l.Close()
		log.Fatal(err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error(err)
		}
		l.Close()
	}()

	session, err := db.NewSession()
	if err != nil {
		log.Error(err)
		return
	}

	log.SetOutput(l.Stderr())
	var pending strings.Builder
	for {
		line, err := l.Readline()
		if err != nil {
			break
		}
		trimmed := strings.TrimSpace(line)

		// Continue a statement that spans lines.
		if pending.Len() > 0 {
			pending.WriteString("\n")
			pending.WriteString(line)
			if strings.HasSuffix(trimmed, ";") {
				execute(session, pending.String())
				pending.Reset()
				l.SetPrompt(prompt)
			}
			continue
		}

		if name, arg, ok := metaCommand(trimmed); ok {
			switch name {
			case "set-log-level":
				setLogLevel(arg)
			case "show-tree":
				showTree(db, arg)
			case "check":
				check(db)
			case "stats":
				stats(db)
			case "help":
				usage(l.Stderr())
			case "exit":
				goto exit
			}
			continue
		}

		switch {
		case trimmed == "":
		case strings.HasSuffix(trimmed, ";"):
			execute(session, line)
		default:
			pending.WriteString(line)
			l.SetPrompt(continuePrompt)
		}
	}
exit:
}

// metaCommands maps each REPL command to whether it takes an argument.
var metaCommands = map[string]bool{
	"set-log-level": true,
	"show-tree":     true,
	"check":         false,
	"stats":         false,
	"help":          false,
	"exit":          false,
}

// metaCommand splits a trimmed input line into a REPL command and its
// argument. ok is false when the line is not a command, so it is SQL.
func metaCommand(line string) (name, arg string, ok bool) {
	name, arg, _ = strings.Cut(line, " ")
	takesArg, known := metaCommands[name]
	if !known || (!takesArg && arg != "") {
		return "", "", false
	}
	return name, strings.TrimSpace(arg), true
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	default:
		fmt.Printf("Invalid log level: %#v\n", level)
	}
}

func execute(session *engine.Session, query string) {
	results, err := session.Exec(query)
	for _, res := range results {
		printResult(os.Stdout, res)
	}
	if err != nil {
		log.Error(err)
	}
}

func printResult(w io.Writer, res *engine.Result) {
	if res.Columns == nil {
		fmt.Fprintln(w, res.Message)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
	fmt.Fprintf(w, "(%d row(s))\n", len(res.Rows))
}

func showTree(db *engine.DB, name string) {
	parts := strings.Split(name, ".")
	if len(parts) != 3 {
		log.Error("Usage: show-tree <db>.<table>.<column>")
		return
	}
	ix, ok := db.Index(parts[0], parts[1], parts[2])
	if !ok {
		log.Error("No index on ", strconv.Quote(name))
		return
	}
	if err := ix.Dump(os.Stdout); err != nil {
		log.Error(err)
	}
}

func check(db *engine.DB) {
	if err := db.Check(); err != nil {
		log.Error(err)
		return
	}
	fmt.Printf("%d index(es) ok\n", len(db.Indexes()))
}

func stats(db *engine.DB) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "index\tkeys\tsplit\tgrow\trebalance\tborrow\tmerge\tshrink\trebalance time\t")
	for _, ix := range db.Indexes() {
		s := ix.Stats()
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t\n",
			ix.Name(), ix.Len(), s.Split, s.Grow, s.Rebalance, s.Borrow, s.Merge, s.Shrink, s.RebalanceTime)
	}
	tw.Flush()
}
