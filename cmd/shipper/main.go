package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shipline/config"
	"shipline/internal/analytics"
	"shipline/internal/api"
	"shipline/internal/chat"
	"shipline/internal/domain"
	"shipline/internal/i18n"
	"shipline/internal/models"
	"shipline/internal/notify"
	"shipline/internal/session"
	"shipline/internal/socket"
)

func main() {
	cfg := config.Load()

	localeDir := os.Getenv("SHIPLINE_LOCALES")
	if localeDir == "" {
		localeDir = "locales"
	}
	if err := i18n.LoadTranslations(localeDir); err != nil {
		log.Printf("i18n: %v (falling back to keys)", err)
	}

	store, err := session.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	mgr, err := session.NewManager(store)
	if err != nil {
		log.Fatalf("session: %v", err)
	}
	client := api.NewClient(&cfg.API, mgr)
	hub := socket.NewHub(cfg.Socket, mgr)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "login":
		runLogin(ctx, client, mgr, os.Args[2:])
	case "logout":
		if err := mgr.Logout(); err != nil {
			log.Fatalf("logout: %v", err)
		}
		fmt.Println("logged out")
	case "lang":
		runLang(mgr, os.Args[2:])
	case "shipments":
		runShipments(ctx, client, mgr, os.Args[2:])
	case "detail":
		runDetail(ctx, client, mgr, os.Args[2:])
	case "transition":
		runTransition(ctx, client, mgr, os.Args[2:])
	case "watch":
		runWatch(client, hub, mgr)
	case "chat":
		runChat(cfg, client, hub, mgr, os.Args[2:])
	case "analytics":
		runAnalytics(ctx, client, mgr, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: shipper <command> [flags]

commands:
  login       -u <user> -p <password>
  logout
  lang        <VN|EN>
  shipments   -status <WAITING|SHIPPING|SUCCESS|CANCELLED> [-page N]
  detail      -id <shipmentId>
  transition  -id <shipmentId> -to <status>
  watch
  chat        -id <shipmentId>
  analytics   [-year YYYY] [-month MM]`)
}

func mustUserID(mgr *session.Manager) int64 {
	id := mgr.UserID()
	if id == 0 {
		log.Fatal(i18n.T("SESSION_EXPIRED"))
	}
	return id
}

func runLogin(ctx context.Context, client *api.Client, mgr *session.Manager, args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password")
	fs.Parse(args)
	if *user == "" || *pass == "" {
		log.Fatal(i18n.T("LOGIN_MISSING_FIELDS"))
	}
	pair, err := client.Authenticate(ctx, *user, *pass)
	if err != nil {
		log.Fatalf("%s: %v", i18n.T("LOGIN_FAILED"), err)
	}
	userID, err := mgr.Login(pair)
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	fmt.Printf("%s (userId=%d)\n", i18n.T("LOGIN_SUCCESS"), userID)
}

func runLang(mgr *session.Manager, args []string) {
	if len(args) != 1 {
		log.Fatal("lang: expected one argument (VN or EN)")
	}
	if err := mgr.SetLanguage(strings.ToUpper(args[0])); err != nil {
		log.Fatalf("lang: %v", err)
	}
	fmt.Printf("language set to %s\n", mgr.Language())
}

func runShipments(ctx context.Context, client *api.Client, mgr *session.Manager, args []string) {
	fs := flag.NewFlagSet("shipments", flag.ExitOnError)
	status := fs.String("status", domain.StatusWaiting, "shipment status")
	page := fs.Int("page", 1, "page number")
	fs.Parse(args)

	q := api.ShipmentQuery{Page: *page, Limit: 5, Status: *status}
	if *status != domain.StatusWaiting {
		q.UserID = mustUserID(mgr)
	}
	res, err := client.ListShipments(ctx, q)
	if err != nil {
		log.Fatalf("shipments: %v", err)
	}
	for _, sh := range res.ListShipment {
		fmt.Printf("#%d  %-10s %-20s %s\n", sh.ShipmentID, sh.Status, sh.CustomerName, sh.Address)
	}
	fmt.Printf("page %d/%d\n", *page, res.TotalPage)
}

func runDetail(ctx context.Context, client *api.Client, mgr *session.Manager, args []string) {
	fs := flag.NewFlagSet("detail", flag.ExitOnError)
	id := fs.Int64("id", 0, "shipment id")
	fs.Parse(args)

	sh, err := client.GetShipment(ctx, *id)
	if err != nil {
		log.Fatalf("%s: %v", i18n.T("SHIPMENT_LOAD_FAILED"), err)
	}
	fmt.Printf("shipment #%d  status=%s customer=%s\n", sh.ShipmentID, sh.Status, sh.CustomerName)
	if dir, err := client.MapDirection(ctx, sh.ShipmentID); err == nil {
		fmt.Printf("route: (%.4f,%.4f) -> (%.4f,%.4f), %d points\n",
			dir.Origin.Latitude, dir.Origin.Longitude,
			dir.Target.Latitude, dir.Target.Longitude, len(dir.Points))
	}
	if sh.PaymentID == 0 {
		return
	}
	payment, err := client.GetPayment(ctx, sh.PaymentID)
	if err != nil {
		log.Fatalf("%s: %v", i18n.T("SHIPMENT_LOAD_FAILED"), err)
	}
	fmt.Printf("payment #%d  amount=%.2f method=%s\n", payment.PaymentID, payment.Amount, payment.Method)
	order, err := client.GetOrderDetail(ctx, payment.OrderID, mgr.Language())
	if err != nil {
		log.Fatalf("%s: %v", i18n.T("SHIPMENT_LOAD_FAILED"), err)
	}
	for _, item := range order.Items {
		fmt.Printf("  %dx %s  %.2f\n", item.Quantity, item.Name, item.Price)
	}
}

func runTransition(ctx context.Context, client *api.Client, mgr *session.Manager, args []string) {
	fs := flag.NewFlagSet("transition", flag.ExitOnError)
	id := fs.Int64("id", 0, "shipment id")
	to := fs.String("to", "", "target status")
	fs.Parse(args)
	userID := mustUserID(mgr)

	var err error
	switch strings.ToUpper(*to) {
	case domain.StatusShipping:
		err = client.ActivateShipping(ctx, userID, *id)
	case domain.StatusSuccess:
		err = client.ActivateSuccess(ctx, userID, *id)
	case domain.StatusCancelled:
		err = client.ActivateCancel(ctx, userID, *id)
	default:
		err = client.UpdateStatus(ctx, *id, strings.ToUpper(*to))
	}
	if err != nil {
		log.Fatalf("%s: %v", i18n.T("SHIPMENT_STATUS_FAILED"), err)
	}
	fmt.Printf("shipment #%d -> %s\n", *id, strings.ToUpper(*to))
}

// runWatch streams live notifications with the stored-list badge count, the
// terminal equivalent of the header badge plus notification screen.
func runWatch(client *api.Client, hub *socket.Hub, mgr *session.Manager) {
	userID := mustUserID(mgr)
	ctx := context.Background()

	var feed *notify.Feed
	feed, err := notify.OpenFeed(ctx, client, hub, userID, func() {
		if feed != nil {
			fmt.Printf("[badge] %d unread\n", feed.Unread())
		}
	})
	if err != nil {
		log.Fatalf("watch: %v", err)
	}
	defer feed.Close()

	sub, err := hub.Subscribe(ctx, userID)
	if err != nil {
		log.Fatalf("watch: %v", err)
	}
	defer sub.Close()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	fmt.Println("watching for notifications, ctrl-c to stop")
	for {
		select {
		case ev := <-sub.Events:
			fmt.Printf("[%s] shipment #%d: %s\n", ev.Time.Time().Format(time.Kitchen), ev.ShipmentID, ev.Message)
		case st := <-sub.States:
			fmt.Printf("[socket] %s\n", st)
		case <-quit:
			return
		}
	}
}

func runChat(cfg *config.Config, client *api.Client, hub *socket.Hub, mgr *session.Manager, args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	id := fs.Int64("id", 0, "shipment id")
	fs.Parse(args)
	userID := mustUserID(mgr)

	opts := chat.Options{
		API:      client,
		Hub:      hub,
		UserID:   userID,
		Greeting: cfg.Chat.Greetings[mgr.Language()],
	}
	opts.OnAppend = func(msg models.ChatMessage) {
		fmt.Printf("[%s] %s\n", senderLabel(msg.SenderID, userID), msg.Message)
	}
	sess, err := chat.Open(context.Background(), opts, *id)
	if err != nil {
		log.Fatalf("chat: %v", err)
	}
	defer sess.Close()

	for _, msg := range sess.Messages() {
		fmt.Printf("%s: %s\n", senderLabel(msg.SenderID, userID), msg.Message)
	}
	if !sess.CanSend() {
		fmt.Println(i18n.T("CHAT_DISABLED"))
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println(i18n.T("CHAT_INPUT"))
	for scanner.Scan() {
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		if _, err := sess.Send(context.Background(), text); err != nil {
			log.Printf("send: %v", err)
		}
	}
}

func senderLabel(senderID, userID int64) string {
	if senderID == userID {
		return "you"
	}
	return "them"
}

func runAnalytics(ctx context.Context, client *api.Client, mgr *session.Manager, args []string) {
	now := time.Now()
	fs := flag.NewFlagSet("analytics", flag.ExitOnError)
	year := fs.Int("year", now.Year(), "year")
	month := fs.Int("month", int(now.Month()), "month")
	fs.Parse(args)
	userID := mustUserID(mgr)

	svc := analytics.New(client, userID)
	shares, err := svc.StatusShares(ctx)
	if err != nil {
		log.Fatalf("analytics: %v", err)
	}
	for _, status := range domain.Statuses {
		fmt.Printf("%-10s %5.1f%%\n", status, shares[status])
	}
	series, err := svc.MonthSeries(ctx, *year, time.Month(*month))
	if err != nil {
		log.Fatalf("analytics: %v", err)
	}
	for _, day := range series {
		if day.Orders == 0 {
			continue
		}
		fmt.Printf("%04d-%02d-%02d  orders=%d revenue=%.2f\n", *year, *month, day.Day, day.Orders, day.Revenue)
	}
}
