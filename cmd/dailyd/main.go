package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"dailyd/internal/daemon"
	"dailyd/internal/model"
	"dailyd/internal/monitor"
	"dailyd/internal/notify"
	"dailyd/internal/schedule"
	"dailyd/internal/setup"
	"dailyd/internal/store"
	"dailyd/internal/uds"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "daemon":
		runDaemon(os.Args[2:])
	case "init":
		runInit(os.Args[2:])
	case "task":
		runTask(os.Args[2:])
	case "settings":
		runSettings(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "launch":
		runLaunch(os.Args[2:])
	case "version":
		fmt.Printf("dailyd %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`dailyd — recurring-task tracker

Usage:
  dailyd daemon   [--dir DIR]                      run the background daemon
  dailyd init     [--dir DIR]                      initialize the data directory
  dailyd task     add|list|remove|done [options]   manage tracked tasks
  dailyd settings show|set [options]               view or change global settings
  dailyd status   [--dir DIR] [--json]             show current task statuses
  dailyd launch   <task-id> [--dir DIR]            launch a task's configured program
  dailyd version`)
}

func defaultDataDir() string {
	if dir := os.Getenv("DAILYD_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dailyd"
	}
	return filepath.Join(home, ".dailyd")
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func dialDaemon(dataDir string) *uds.Client {
	return uds.NewClient(filepath.Join(dataDir, uds.DefaultSocketName))
}

func daemonRunning(dataDir string) bool {
	client := dialDaemon(dataDir)
	client.SetTimeout(2 * time.Second)
	resp, err := client.SendCommand("ping", nil)
	return err == nil && resp.Success
}

func runDaemon(args []string) {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	fs.Parse(args)

	if err := setup.Run(*dir); err != nil {
		fatal("init data dir: %v", err)
	}
	d, err := daemon.New(*dir)
	if err != nil {
		fatal("start daemon: %v", err)
	}
	if err := d.Run(); err != nil {
		fatal("daemon: %v", err)
	}
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	fs.Parse(args)

	if err := setup.Run(*dir); err != nil {
		fatal("init: %v", err)
	}
	fmt.Printf("initialized %s\n", *dir)
}

func runTask(args []string) {
	if len(args) < 1 {
		fatal("usage: dailyd task <add|list|remove|done> [options]")
	}
	switch args[0] {
	case "add":
		runTaskAdd(args[1:])
	case "list":
		runTaskList(args[1:])
	case "remove":
		runTaskRemove(args[1:])
	case "done":
		runTaskDone(args[1:])
	default:
		fatal("unknown task subcommand: %s\nusage: dailyd task <add|list|remove|done> [options]", args[0])
	}
}

func runTaskAdd(args []string) {
	fs := flag.NewFlagSet("task add", flag.ExitOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	name := fs.String("name", "", "display name (defaults to the watch path basename)")
	watch := fs.String("watch", "", "process signature to monitor (required)")
	launch := fs.String("launch", "", "path to launch the program")
	reset := fs.String("reset", "", "daily reset time HH:MM (overrides --cycle)")
	cycle := fs.Int("cycle", 0, "cycle length in hours (default 24)")
	slots := fs.String("slots", "", "comma-separated mandatory times, e.g. 12:00,18:00")
	slotsEnabled := fs.Bool("slots-enabled", false, "enforce mandatory times")
	fs.Parse(args)

	if *watch == "" {
		fatal("task add: --watch is required")
	}
	taskName := strings.TrimSpace(*name)
	if taskName == "" {
		base := filepath.Base(*watch)
		taskName = strings.TrimSuffix(base, filepath.Ext(base))
	}

	task := model.NewTask(taskName, *watch)
	task.LaunchSignature = *launch
	if *cycle > 0 {
		task.CycleHours = *cycle
	}
	if *reset != "" {
		t, err := model.ParseTimeOfDay(*reset)
		if err != nil {
			fatal("task add: %v", err)
		}
		task.DailyReset = &t
	}
	if *slots != "" {
		for _, s := range strings.Split(*slots, ",") {
			t, err := model.ParseTimeOfDay(strings.TrimSpace(s))
			if err != nil {
				fatal("task add: %v", err)
			}
			task.MandatorySlots = append(task.MandatorySlots, t)
		}
		task.Normalize()
	}
	task.MandatorySlotsEnabled = *slotsEnabled

	if err := setup.Run(*dir); err != nil {
		fatal("init data dir: %v", err)
	}
	tasks, err := store.OpenTasks(*dir)
	if err != nil {
		fatal("open task store: %v", err)
	}
	if err := tasks.AddTask(task); err != nil {
		fatal("add task: %v", err)
	}
	fmt.Printf("added task %s (%s)\n", task.ID, task.Name)
}

func runTaskList(args []string) {
	fs := flag.NewFlagSet("task list", flag.ExitOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	fs.Parse(args)

	tasks, err := store.OpenTasks(*dir)
	if err != nil {
		fatal("open task store: %v", err)
	}
	list, _ := tasks.ListTasks()
	if len(list) == 0 {
		fmt.Println("no tasks")
		return
	}
	for _, t := range list {
		fmt.Printf("%s  %-20s  %s  %s\n", t.ID, t.Name, describeSchedule(t), describeLast(t))
	}
}

func describeSchedule(t model.Task) string {
	var parts []string
	if t.DailyReset != nil {
		parts = append(parts, "reset "+t.DailyReset.String())
	} else {
		parts = append(parts, fmt.Sprintf("every %dh", int(t.EffectiveCycle().Hours())))
	}
	if t.MandatorySlotsEnabled && len(t.MandatorySlots) > 0 {
		var ss []string
		for _, s := range t.MandatorySlots {
			ss = append(ss, s.String())
		}
		parts = append(parts, "slots "+strings.Join(ss, ","))
	}
	return strings.Join(parts, ", ")
}

func describeLast(t model.Task) string {
	if t.LastActivityAt == nil {
		return "never played"
	}
	return "last " + t.LastActivityAt.Format("Jan 02 15:04")
}

func runTaskRemove(args []string) {
	fs := flag.NewFlagSet("task remove", flag.ExitOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fatal("usage: dailyd task remove <task-id>")
	}
	id := fs.Arg(0)

	tasks, err := store.OpenTasks(*dir)
	if err != nil {
		fatal("open task store: %v", err)
	}
	if err := tasks.RemoveTask(id); err != nil {
		fatal("remove task: %v", err)
	}
	fmt.Printf("removed task %s\n", id)
}

func runTaskDone(args []string) {
	fs := flag.NewFlagSet("task done", flag.ExitOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	at := fs.String("at", "", "completion instant, RFC3339 (defaults to now)")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fatal("usage: dailyd task done <task-id> [--at RFC3339]")
	}
	id := fs.Arg(0)

	// Prefer the daemon so its snapshot and watermarks update immediately.
	if daemonRunning(*dir) {
		resp, err := dialDaemon(*dir).SendCommand("done", daemon.DoneParams{TaskID: id, At: *at})
		if err != nil {
			fatal("done: %v", err)
		}
		if !resp.Success {
			fatal("done: %s", resp.Error.Message)
		}
		fmt.Printf("marked %s done\n", id)
		return
	}

	instant := time.Now()
	if *at != "" {
		parsed, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			fatal("done: parse --at: %v", err)
		}
		instant = parsed
	}
	tasks, err := store.OpenTasks(*dir)
	if err != nil {
		fatal("open task store: %v", err)
	}
	task, err := tasks.GetTask(id)
	if err != nil {
		fatal("done: %v", err)
	}
	task.RecordActivity(instant, time.Now())
	if err := tasks.UpdateTask(task); err != nil {
		fatal("done: %v", err)
	}
	fmt.Printf("marked %s done\n", id)
}

func runSettings(args []string) {
	if len(args) < 1 {
		fatal("usage: dailyd settings <show|set> [options]")
	}
	switch args[0] {
	case "show":
		runSettingsShow(args[1:])
	case "set":
		runSettingsSet(args[1:])
	default:
		fatal("unknown settings subcommand: %s\nusage: dailyd settings <show|set> [options]", args[0])
	}
}

func runSettingsShow(args []string) {
	fs := flag.NewFlagSet("settings show", flag.ExitOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	fs.Parse(args)

	var data daemon.SettingsData
	if daemonRunning(*dir) {
		resp, err := dialDaemon(*dir).SendCommand("settings_get", nil)
		if err != nil {
			fatal("settings: %v", err)
		}
		if !resp.Success {
			fatal("settings: %s", resp.Error.Message)
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			fatal("settings: %v", err)
		}
	} else {
		settings, err := store.OpenSettings(*dir)
		if err != nil {
			fatal("open settings store: %v", err)
		}
		data = daemon.SettingsToData(settings.Get())
	}

	fmt.Printf("sleep window:            %s – %s\n", data.SleepStart, data.SleepEnd)
	fmt.Printf("sleep correction lead:   %.1fh\n", data.SleepCorrectionAdvanceHours)
	fmt.Printf("cycle deadline lead:     %.1fh\n", data.CycleDeadlineAdvanceHours)
}

func runSettingsSet(args []string) {
	fs := flag.NewFlagSet("settings set", flag.ExitOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	sleepStart := fs.String("sleep-start", "", "sleep window start HH:MM")
	sleepEnd := fs.String("sleep-end", "", "sleep window end HH:MM")
	sleepLead := fs.Float64("sleep-advance", -1, "warning lead hours for deadlines inside the sleep window")
	cycleLead := fs.Float64("cycle-advance", -1, "default warning lead hours")
	fs.Parse(args)

	params := daemon.SettingsSetParams{}
	if *sleepStart != "" {
		params.SleepStart = sleepStart
	}
	if *sleepEnd != "" {
		params.SleepEnd = sleepEnd
	}
	if *sleepLead >= 0 {
		params.SleepCorrectionAdvanceHours = sleepLead
	}
	if *cycleLead >= 0 {
		params.CycleDeadlineAdvanceHours = cycleLead
	}

	if daemonRunning(*dir) {
		resp, err := dialDaemon(*dir).SendCommand("settings_set", params)
		if err != nil {
			fatal("settings set: %v", err)
		}
		if !resp.Success {
			fatal("settings set: %s", resp.Error.Message)
		}
		fmt.Println("settings saved")
		return
	}

	var startTime, endTime *model.TimeOfDay
	if params.SleepStart != nil {
		t, err := model.ParseTimeOfDay(*params.SleepStart)
		if err != nil {
			fatal("settings set: %v", err)
		}
		startTime = &t
	}
	if params.SleepEnd != nil {
		t, err := model.ParseTimeOfDay(*params.SleepEnd)
		if err != nil {
			fatal("settings set: %v", err)
		}
		endTime = &t
	}

	settings, err := store.OpenSettings(*dir)
	if err != nil {
		fatal("open settings store: %v", err)
	}
	err = settings.Update(func(gs *model.GlobalSettings) {
		if startTime != nil {
			gs.SleepStart = *startTime
		}
		if endTime != nil {
			gs.SleepEnd = *endTime
		}
		if params.SleepCorrectionAdvanceHours != nil {
			gs.SleepCorrectionAdvanceHours = *params.SleepCorrectionAdvanceHours
		}
		if params.CycleDeadlineAdvanceHours != nil {
			gs.CycleDeadlineAdvanceHours = *params.CycleDeadlineAdvanceHours
		}
	})
	if err != nil {
		fatal("settings set: %v", err)
	}
	fmt.Println("settings saved")
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	jsonOut := fs.Bool("json", false, "JSON output")
	fs.Parse(args)

	var data daemon.StatusData
	if daemonRunning(*dir) {
		resp, err := dialDaemon(*dir).SendCommand("status", nil)
		if err != nil {
			fatal("status: %v", err)
		}
		if !resp.Success {
			fatal("status: %s", resp.Error.Message)
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			fatal("status: %v", err)
		}
	} else {
		data = localStatus(*dir)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err != nil {
			fatal("status: %v", err)
		}
		return
	}

	if len(data.Tasks) == 0 {
		fmt.Println("no tasks")
		return
	}
	for _, t := range data.Tasks {
		fmt.Printf("%-10s  %-20s  due %s  (%s left)\n", t.Status, t.Name, t.Deadline, t.RemainingDisplay)
	}
}

// localStatus classifies tasks without the daemon: one observation pass, no
// edge detection or alerts.
func localStatus(dataDir string) daemon.StatusData {
	tasks, err := store.OpenTasks(dataDir)
	if err != nil {
		fatal("open task store: %v", err)
	}
	list, _ := tasks.ListTasks()

	sigs, err := monitor.NewPSObserver().ListRunningSignatures()
	if err != nil {
		sigs = nil
	}
	observed := monitor.NewSignatures(monitor.DefaultCaseInsensitive(), sigs)

	now := time.Now()
	data := daemon.StatusData{Tasks: make([]daemon.TaskStatusEntry, 0, len(list))}
	for _, t := range list {
		a := schedule.Classify(t, observed.Contains(t.MonitoringSignature), now)
		entry := daemon.TaskStatusEntry{
			ID:               t.ID,
			Name:             t.Name,
			Status:           string(a.Status),
			Deadline:         a.Deadline.Format(time.RFC3339),
			RemainingSec:     int64(a.Remaining.Seconds()),
			RemainingDisplay: schedule.FormatRemaining(a.Remaining),
		}
		if t.LastActivityAt != nil {
			entry.LastActivityAt = t.LastActivityAt.Format(time.RFC3339)
		}
		data.Tasks = append(data.Tasks, entry)
	}
	return data
}

func runLaunch(args []string) {
	fs := flag.NewFlagSet("launch", flag.ExitOnError)
	dir := fs.String("dir", defaultDataDir(), "data directory")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fatal("usage: dailyd launch <task-id>")
	}
	id := fs.Arg(0)

	tasks, err := store.OpenTasks(*dir)
	if err != nil {
		fatal("open task store: %v", err)
	}
	task, err := tasks.GetTask(id)
	if err != nil {
		fatal("launch: %v", err)
	}
	if task.LaunchSignature == "" {
		fatal("launch: task %s has no launch path configured", id)
	}

	desktop := notify.NewDesktop("dailyd")
	cmd := exec.Command(task.LaunchSignature)
	cmd.Dir = filepath.Dir(task.LaunchSignature)
	if err := cmd.Start(); err != nil {
		_ = desktop.Notify(task.ID, "Launch failed", fmt.Sprintf("%s: %v", task.Name, err))
		fatal("launch %s: %v", task.Name, err)
	}
	// Detach: the daemon's poll picks the process up, not this CLI.
	_ = cmd.Process.Release()
	_ = desktop.Notify(task.ID, "Launched", task.Name)
	fmt.Printf("launched %s\n", task.Name)
}
