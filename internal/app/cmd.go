package app

import (
	"fmt"
	"strings"
)

// Command はgenstudioのサブコマンド。
type Command string

const (
	CommandServe   Command = "serve"
	CommandWorker  Command = "worker"
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はdistrolessイメージのHEALTHCHECKから呼ばれる。
	CommandHealthcheck Command = "healthcheck"
)

// commands は受け付けるサブコマンドの一覧。usage表示の順序でもある。
var commands = []Command{CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck}

// Usage はサブコマンドの一覧を1行で返す。
func Usage() string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return "usage: genstudio [" + strings.Join(names, "|") + "]"
}

// ParseCommand は先頭の引数からサブコマンドを決める。
// 引数が無ければserve。未知のサブコマンドはエラー。2番目以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}
	for _, c := range commands {
		if args[0] == string(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown command %q\n%s", args[0], Usage())
}
