package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/urfave/cli/v2"

	"github.com/silentius-satoshi/ZapTok-sub008/cashu"
	"github.com/silentius-satoshi/ZapTok-sub008/nutzap"
	"github.com/silentius-satoshi/ZapTok-sub008/wallet"
)

var zaptok *wallet.Wallet

var defaultRelays = []string{"wss://relay.damus.io", "wss://nos.lol"}

func walletConfig() wallet.Config {
	path := setWalletPath()
	// default config
	config := wallet.Config{WalletPath: path, CurrentMintURL: "https://8333.space:3338"}

	envPath := filepath.Join(path, ".env")
	if _, err := os.Stat(envPath); err != nil {
		wd, err := os.Getwd()
		if err != nil {
			envPath = ""
		} else {
			envPath = filepath.Join(wd, ".env")
		}
	}

	if len(envPath) > 0 {
		err := godotenv.Load(envPath)
		if err == nil {
			if mintURL := os.Getenv("MINT_URL"); len(mintURL) > 0 {
				config.CurrentMintURL = mintURL
			}
		}
	}

	return config
}

func setWalletPath() string {
	homedir, err := os.UserHomeDir()
	if err != nil {
		log.Fatal(err)
	}

	path := filepath.Join(homedir, ".zaptok", "wallet")
	err = os.MkdirAll(path, 0700)
	if err != nil {
		log.Fatal(err)
	}
	return path
}

func relayURLs() []string {
	relays := os.Getenv("NOSTR_RELAYS")
	if len(relays) == 0 {
		return defaultRelays
	}
	urls := []string{}
	for _, relay := range strings.Split(relays, ",") {
		relay = strings.TrimSpace(relay)
		if len(relay) > 0 {
			urls = append(urls, relay)
		}
	}
	return urls
}

func setupWallet(ctx *cli.Context) error {
	config := walletConfig()

	var err error
	zaptok, err = wallet.LoadWallet(config)
	if err != nil {
		printErr(err)
	}
	return nil
}

func setupSender(ctx *cli.Context) (*nutzap.Sender, error) {
	relayClient, err := nutzap.NewRelayClient(ctx.Context, relayURLs(), nil)
	if err != nil {
		return nil, err
	}
	return nutzap.NewSender(zaptok, relayClient, relayClient, os.Getenv("NOSTR_KEY"), nil)
}

func setupReceiver(ctx *cli.Context) (*nutzap.Receiver, error) {
	nostrKey := os.Getenv("NOSTR_KEY")
	if len(nostrKey) == 0 {
		return nil, errors.New("NOSTR_KEY not set")
	}
	pubkey, err := nostr.GetPublicKey(nostrKey)
	if err != nil {
		return nil, fmt.Errorf("invalid NOSTR_KEY: %v", err)
	}

	relayClient, err := nutzap.NewRelayClient(ctx.Context, relayURLs(), nil)
	if err != nil {
		return nil, err
	}
	return nutzap.NewReceiver(zaptok, relayClient, pubkey, nil), nil
}

func main() {
	app := &cli.App{
		Name:  "zaptok",
		Usage: "cashu wallet with nutzaps over nostr",
		Commands: []*cli.Command{
			balanceCmd,
			mintsCmd,
			mintCmd,
			sendCmd,
			receiveCmd,
			payCmd,
			zapCmd,
			zapsCmd,
			redeemCmd,
			announceCmd,
			historyCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var balanceCmd = &cli.Command{
	Name:   "balance",
	Before: setupWallet,
	Action: getBalance,
}

func getBalance(ctx *cli.Context) error {
	byMint := zaptok.BalanceByMint()
	for mint, balance := range byMint {
		fmt.Printf("%v: %v sats\n", mint, balance)
	}
	fmt.Printf("total: %v sats\n", zaptok.Balance())
	return nil
}

var mintsCmd = &cli.Command{
	Name:   "mints",
	Usage:  "list wallet mints. Subcommands to add a mint or change the active one",
	Before: setupWallet,
	Action: listMints,
	Subcommands: []*cli.Command{
		{
			Name:   "add",
			Action: addMint,
		},
		{
			Name:   "set",
			Action: setActiveMint,
		},
		{
			Name:   "remove",
			Action: removeMint,
		},
	},
}

func listMints(ctx *cli.Context) error {
	activeMint := zaptok.ActiveMint()
	for _, mint := range zaptok.Mints() {
		marker := " "
		if mint.URL == activeMint {
			marker = "*"
		}
		fmt.Printf("%v %v\n", marker, mint.URL)
	}
	return nil
}

func addMint(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify a mint url to add"))
	}
	if err := zaptok.AddMint(args.First()); err != nil {
		printErr(err)
	}
	return nil
}

func setActiveMint(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify the mint url to make active"))
	}
	if err := zaptok.SetActiveMint(args.First()); err != nil {
		printErr(err)
	}
	return nil
}

func removeMint(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify the mint url to remove"))
	}
	if err := zaptok.RemoveMint(args.First()); err != nil {
		printErr(err)
	}
	return nil
}

const quoteFlag = "quote"

var mintCmd = &cli.Command{
	Name:   "mint",
	Before: setupWallet,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  quoteFlag,
			Usage: "Specify the quote of a paid invoice to mint tokens",
		},
	},
	Action: mint,
}

func mint(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify an amount to mint"))
	}
	amount, err := strconv.ParseUint(args.First(), 10, 64)
	if err != nil {
		printErr(errors.New("invalid amount"))
	}

	// if a paid quote was passed, request the ecash from the mint
	if ctx.IsSet(quoteFlag) {
		minted, err := zaptok.MintTokens(ctx.Context, ctx.String(quoteFlag), amount)
		if err != nil {
			printErr(err)
		}
		fmt.Printf("%v sats successfully minted\n", minted)
		return nil
	}

	mintResponse, err := zaptok.RequestMint(ctx.Context, amount)
	if err != nil {
		printErr(err)
	}

	fmt.Printf("invoice: %v\n\n", mintResponse.Request)
	fmt.Printf("after paying the invoice, redeem the ecash with: zaptok mint --quote %v %v\n",
		mintResponse.Quote, amount)
	return nil
}

var sendCmd = &cli.Command{
	Name:   "send",
	Before: setupWallet,
	Action: send,
}

func send(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify an amount to send"))
	}
	sendAmount, err := strconv.ParseUint(args.First(), 10, 64)
	if err != nil {
		printErr(err)
	}

	token, err := zaptok.Send(ctx.Context, sendAmount, zaptok.ActiveMint())
	if err != nil {
		printErr(err)
	}

	serialized, err := token.Serialize()
	if err != nil {
		printErr(err)
	}
	fmt.Printf("%v\n", serialized)
	return nil
}

var receiveCmd = &cli.Command{
	Name:   "receive",
	Before: setupWallet,
	Action: receive,
}

func receive(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("cashu token not provided"))
	}

	token, err := cashu.DecodeToken(args.First())
	if err != nil {
		printErr(err)
	}

	received, err := zaptok.Receive(ctx.Context, token)
	if err != nil {
		printErr(err)
	}

	fmt.Printf("%v sats received\n", received)
	return nil
}

var payCmd = &cli.Command{
	Name:   "pay",
	Before: setupWallet,
	Action: pay,
}

func pay(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify a lightning invoice to pay"))
	}

	meltResponse, err := zaptok.Melt(ctx.Context, args.First())
	if err != nil {
		printErr(err)
	}

	paid := meltResponse.Paid || strings.EqualFold(meltResponse.State, "PAID")
	fmt.Printf("invoice paid: %v\n", paid)
	return nil
}

const (
	commentFlag = "comment"
	eventFlag   = "event"
)

var zapCmd = &cli.Command{
	Name:   "zap",
	Usage:  "send a nutzap: zap <amount> <recipient npub or hex pubkey>",
	Before: setupWallet,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  commentFlag,
			Usage: "Comment to attach to the nutzap",
		},
		&cli.StringFlag{
			Name:  eventFlag,
			Usage: "Id of the note being zapped",
		},
	},
	Action: zap,
}

func zap(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 2 {
		printErr(errors.New("specify an amount and a recipient"))
	}
	amount, err := strconv.ParseUint(args.First(), 10, 64)
	if err != nil {
		printErr(errors.New("invalid amount"))
	}
	recipient, err := parsePubkey(args.Get(1))
	if err != nil {
		printErr(err)
	}

	sender, err := setupSender(ctx)
	if err != nil {
		printErr(err)
	}

	result, err := sender.Send(ctx.Context, nutzap.SendParams{
		To:      recipient,
		Amount:  amount,
		Comment: ctx.String(commentFlag),
		EventID: ctx.String(eventFlag),
	})
	if err != nil {
		printErr(err)
	}

	if result.SwitchedMint {
		fmt.Printf("switched active mint to %v\n", result.Mint)
	}
	fmt.Printf("zapped %v sats, event %v\n", result.Amount, result.EventID)
	return nil
}

var zapsCmd = &cli.Command{
	Name:   "zaps",
	Usage:  "list nutzaps addressed to you",
	Before: setupWallet,
	Action: listZaps,
}

func listZaps(ctx *cli.Context) error {
	receiver, err := setupReceiver(ctx)
	if err != nil {
		printErr(err)
	}

	zaps, err := receiver.Fetch(ctx.Context, 100)
	if err != nil {
		printErr(err)
	}

	for _, zap := range zaps {
		comment := zap.Comment
		if len(comment) > 0 {
			comment = " \"" + comment + "\""
		}
		fmt.Printf("%v sats from %v at %v%v\n", zap.Proofs.Amount(), zap.Sender,
			time.Unix(zap.CreatedAt, 0).Format(time.RFC822), comment)
	}
	return nil
}

var redeemCmd = &cli.Command{
	Name:   "redeem",
	Usage:  "redeem received nutzaps into the wallet",
	Before: setupWallet,
	Action: redeem,
}

func redeem(ctx *cli.Context) error {
	receiver, err := setupReceiver(ctx)
	if err != nil {
		printErr(err)
	}

	zaps, err := receiver.Fetch(ctx.Context, 100)
	if err != nil {
		printErr(err)
	}

	var redeemed uint64
	for _, zap := range zaps {
		result, err := receiver.Redeem(ctx.Context, zap)
		if err != nil {
			fmt.Printf("could not redeem nutzap %v: %v\n", zap.EventID, err)
			continue
		}
		redeemed += result.Redeemed
		if result.Inaccessible > 0 {
			fmt.Printf("nutzap %v: %v sats locked to a key this wallet does not hold\n",
				zap.EventID, result.Inaccessible)
		}
	}

	fmt.Printf("%v sats redeemed\n", redeemed)
	return nil
}

var announceCmd = &cli.Command{
	Name:   "announce",
	Usage:  "publish the wallet's nutzap info (accepted mints and receiving key)",
	Before: setupWallet,
	Action: announce,
}

func announce(ctx *cli.Context) error {
	sender, err := setupSender(ctx)
	if err != nil {
		printErr(err)
	}

	eventId, err := sender.PublishInfo(ctx.Context, relayURLs())
	if err != nil {
		printErr(err)
	}
	fmt.Printf("published nutzap info, event %v\n", eventId)
	return nil
}

const windowFlag = "window"

var historyCmd = &cli.Command{
	Name:   "history",
	Before: setupWallet,
	Flags: []cli.Flag{
		&cli.UintFlag{
			Name:  windowFlag,
			Usage: "Grouping window in seconds",
		},
	},
	Action: history,
}

func history(ctx *cli.Context) error {
	opts := wallet.GroupingOptions{
		Window: time.Duration(ctx.Uint(windowFlag)) * time.Second,
	}

	for _, group := range zaptok.GroupedHistory(opts) {
		line := fmt.Sprintf("%v  %-7v %v  %v sats", time.Unix(group.Timestamp, 0).Format(time.RFC822),
			group.Type, group.Direction, group.Amount)
		if group.Count > 1 {
			line += fmt.Sprintf("  (x%v)", group.Count)
		}
		fmt.Println(line)
	}
	return nil
}

func parsePubkey(input string) (string, error) {
	if strings.HasPrefix(input, "npub") {
		prefix, value, err := nip19.Decode(input)
		if err != nil {
			return "", fmt.Errorf("invalid npub: %v", err)
		}
		if prefix != "npub" {
			return "", errors.New("expected an npub")
		}
		return value.(string), nil
	}
	return input, nil
}

func printErr(msg error) {
	fmt.Println(msg.Error())
	os.Exit(0)
}
