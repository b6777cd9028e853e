package harness

import "github.com/roach88/replcheck/internal/command"

func echoCommand(word string) command.Command {
	return command.Argv("sh", "-c", `printf '%s\n' "$1"`, "sh", word)
}

func echoOptions() command.Options {
	return command.Options{Env: map[string]string{"REPLCHECK_TOKEN": "s3cret"}}
}
