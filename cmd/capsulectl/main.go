package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/noarlabs/go-capsule-client/api"
	"github.com/noarlabs/go-capsule-client/biometric"
	"github.com/noarlabs/go-capsule-client/capsule"
	"github.com/noarlabs/go-capsule-client/internal/config"
	"github.com/noarlabs/go-capsule-client/lookup"
	"github.com/noarlabs/go-capsule-client/session"
	"github.com/noarlabs/go-capsule-client/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := run(os.Args[1:]); err != nil {
		log.Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

type app struct {
	cfg       config.Config
	store     store.Store
	client    *api.Client
	session   session.Session
	biometric *biometric.Adapter
	devices   *lookup.DeviceService
	campaigns *lookup.CampaignService
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if len(args) == 0 {
		usage()
		return errors.New("missing command")
	}

	cfg := config.New()
	fileStore, err := store.NewFileStore(cfg.GetDataFolder())
	if err != nil {
		return errors.Wrap(err, "open credential store")
	}
	client, err := api.NewClient(cfg.GetBaseURL(), store.NewBearerSource(fileStore),
		api.WithTimeout(cfg.GetRequestTimeout()))
	if err != nil {
		return errors.Wrap(err, "build API client")
	}
	manager, err := session.NewManager(fileStore, client)
	if err != nil {
		return errors.Wrap(err, "build session manager")
	}
	adapter, err := biometric.NewAdapter(fileStore, consolePrompter{})
	if err != nil {
		return errors.Wrap(err, "build biometric adapter")
	}
	devices, err := lookup.NewDeviceService(client)
	if err != nil {
		return errors.Wrap(err, "build device service")
	}
	campaigns, err := lookup.NewCampaignService(client)
	if err != nil {
		return errors.Wrap(err, "build campaign service")
	}

	a := &app{
		cfg:       cfg,
		store:     fileStore,
		client:    client,
		session:   manager,
		biometric: adapter,
		devices:   devices,
		campaigns: campaigns,
	}

	ctx := context.Background()
	switch args[0] {
	case "login":
		return a.cmdLogin(ctx, args[1:])
	case "logout":
		return a.cmdLogout(args[1:])
	case "whoami":
		return a.cmdWhoami(ctx)
	case "refresh":
		return a.cmdRefresh(ctx)
	case "device":
		return a.cmdDevice(ctx, args[1:])
	case "campaigns":
		return a.cmdCampaigns(ctx, args[1:])
	case "register":
		return a.cmdRegister(ctx, args[1:])
	default:
		usage()
		return errors.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	banner := figure.NewFigure("capsulectl", "cybermedium", true)
	banner.Print()
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  login -user <login> [-pass <secret>] [-save-biometric]")
	fmt.Println("  login -biometric")
	fmt.Println("  logout [-wipe-biometric]")
	fmt.Println("  whoami")
	fmt.Println("  refresh")
	fmt.Println("  device <mac>")
	fmt.Println("  campaigns <query>")
	fmt.Println("  register -mac <mac> [-campaign <id>] [-serial <serial>] [-dev] [-consume-tests]")
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	user := fs.String("user", "", "login identifier")
	pass := fs.String("pass", "", "password (prompted when omitted)")
	useBiometric := fs.Bool("biometric", false, "unlock with saved biometric credentials")
	saveBiometric := fs.Bool("save-biometric", false, "save credentials for biometric unlock")
	if err := fs.Parse(args); err != nil {
		return err
	}

	identifier, secret := *user, *pass
	if *useBiometric {
		result := a.biometric.Challenge(ctx)
		if !result.Approved {
			return errors.New("biometric unlock failed, log in manually")
		}
		identifier, secret = result.Bundle.Login, result.Bundle.Senha
	}
	if identifier == "" {
		return errors.New("login identifier is required")
	}
	if secret == "" {
		fmt.Print("Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return errors.Wrap(err, "read password")
		}
		secret = strings.TrimSpace(line)
	}

	profile, err := a.session.Login(ctx, identifier, secret)
	if err != nil {
		snapshot := a.session.Snapshot()
		return errors.New(snapshot.LastError)
	}
	fmt.Printf("Logged in as %s (%s)\n", profile.Name, profile.Role)

	if *saveBiometric {
		if a.biometric.SaveBundle(biometric.Bundle{Login: identifier, Senha: secret}) {
			fmt.Println("Biometric credentials saved")
		}
	}
	return nil
}

func (a *app) cmdLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	wipe := fs.Bool("wipe-biometric", false, "also remove saved biometric credentials")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a.session.Logout(*wipe)
	fmt.Println("Logged out")
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	a.session.Restore()
	snapshot := a.session.Snapshot()
	if snapshot.Status != session.StatusAuthenticated {
		fmt.Println("Not logged in")
		return nil
	}
	fmt.Printf("%s <%s> role=%s profile=%s\n",
		snapshot.User.Name, snapshot.User.Email, snapshot.User.Role, snapshot.User.Source)
	return nil
}

func (a *app) cmdRefresh(ctx context.Context) error {
	a.session.Restore()
	profile, err := a.session.RefreshProfile(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s> role=%s profile=%s\n", profile.Name, profile.Email, profile.Role, profile.Source)
	return nil
}

func (a *app) cmdDevice(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: device <mac>")
	}
	a.session.Restore()
	device, err := a.devices.FindByMAC(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Device %d mac=%s remainingTests=%d\n", device.DeviceID, device.MacAddress, device.RemainingTests)
	if device.Campaign != nil {
		fmt.Printf("Associated campaign: %d %s\n", device.Campaign.CampaignID, device.Campaign.Name)
	}
	return nil
}

func (a *app) cmdCampaigns(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: campaigns <query>")
	}
	a.session.Restore()
	results, err := a.campaigns.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No campaigns found (queries need at least 3 characters)")
		return nil
	}
	for _, c := range results {
		fmt.Printf("%d\t%s\tshots=%d\n", c.CampaignID, c.Name, c.FragranceShots)
	}
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	mac := fs.String("mac", "", "device MAC address")
	campaignID := fs.String("campaign", "", "campaign id (defaults to the device association)")
	serial := fs.String("serial", "", "serial number (generated when omitted)")
	devMode := fs.Bool("dev", false, "development serial (sentinel first character)")
	consume := fs.Bool("consume-tests", false, "decrement the device test pool after submission")
	dueDate := fs.String("due", "", "due date YYYY-MM-DD (defaults to one year out)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mac == "" {
		return errors.New("-mac is required")
	}

	a.session.Restore()
	if a.session.Snapshot().Status != session.StatusAuthenticated {
		return errors.New("log in first")
	}

	workflow, err := capsule.NewWorkflow(a.client, a.devices, a.campaigns,
		capsule.WithProgressFunc(func(percent int) {
			fmt.Printf("\r  progress: %3d%%", percent)
			if percent >= 100 {
				fmt.Println()
			}
		}))
	if err != nil {
		return errors.Wrap(err, "build workflow")
	}

	workflow.LoadDefaults(ctx)
	if *dueDate != "" {
		workflow.SetDueDate(*dueDate)
	}

	conflict, err := workflow.ResolveDevice(ctx, *mac)
	if err != nil {
		return err
	}
	if conflict != nil {
		return errors.Errorf("device is associated with campaign %q (%d); rerun with -campaign to confirm the change",
			conflict.CurrentCampaignName, conflict.CurrentCampaignID)
	}

	if *campaignID != "" {
		id, err := strconv.ParseInt(*campaignID, 10, 64)
		if err != nil {
			return errors.Wrap(err, "parse -campaign")
		}
		selectConflict, err := workflow.SelectCampaign(ctx, id)
		if err != nil {
			return err
		}
		if selectConflict != nil {
			if !confirm(fmt.Sprintf("Device is associated with campaign %q. Change it to %d?",
				selectConflict.CurrentCampaignName, id)) {
				return errors.New("cancelled")
			}
			if err := workflow.ConfirmCampaignChange(ctx, id); err != nil {
				return err
			}
		}
	}
	if workflow.Campaign() == nil {
		return errors.New("no campaign resolved; pass -campaign <id>")
	}

	if *serial == "" {
		generated, err := workflow.GenerateSerial(*devMode || a.cfg.GetDevMode())
		if err != nil {
			return err
		}
		fmt.Printf("Serial: %s\n", generated)
	} else {
		workflow.SetSerialNumber(*serial)
	}
	workflow.SetConsumeDeviceTests(*consume)
	workflow.SelectAll(true)

	fmt.Println("Validating capsules...")
	report, err := workflow.Validate(ctx)
	if err != nil {
		return err
	}
	if report.Rejected > 0 {
		fmt.Printf("%d of %d capsules already registered, deselected\n", report.Rejected, report.Checked)
	}
	if report.AllRejected {
		return errors.New("every selected capsule is already registered")
	}

	fmt.Println("Registering capsules...")
	if err := workflow.Submit(ctx); err != nil {
		return err
	}
	fmt.Println("Capsules registered")
	return nil
}

func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

// consolePrompter stands in for the platform biometric surface on a
// terminal: always "available", approval is a y/N confirmation.
type consolePrompter struct{}

func (consolePrompter) Capability() (biometric.Capability, error) {
	return biometric.Capability{Available: true, Enrolled: true, Kind: biometric.KindGeneric}, nil
}

func (consolePrompter) Authenticate(_ context.Context, message string) (bool, error) {
	return confirm(message), nil
}
