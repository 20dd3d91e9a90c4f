package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rajivgeraev/reswap-api/internal/client"
	"github.com/rajivgeraev/reswap-api/internal/client/favorites"
	"github.com/rajivgeraev/reswap-api/internal/models"
)

var (
	version   string
	buildDate string
)

const usage = `Команды:
  register <email> <password> [username]
  login <email> <password>
  logout
  forgot <email>
  reset <token> <new-password>
  profile [-phone P] [-location L]
  browse [-q text] [-category C] [-condition C] [-all] [-limit N] [-offset N]
  show <item-id>
  add -name N [-description D] [-keywords K] [-category C] [-condition C] <photo>...
  delete <item-id>
  my
  like <item-id> | unlike <item-id> | liked
  swap <their-item-id> <my-item-id> [message]
  swaps [-type incoming|outgoing|all] [-status S]
  accept <request-id> | reject <request-id> | cancel <request-id>`

type app struct {
	api     *client.API
	session *client.Session
	likes   *favorites.Store
}

func main() {
	var (
		baseURL string
		dataDir string
		showVer bool
	)

	defaultDir, err := client.DefaultDir()
	if err != nil {
		defaultDir = ".reswap"
	}

	flag.StringVar(&baseURL, "url", "http://localhost:8080", "server base URL")
	flag.StringVar(&dataDir, "dir", defaultDir, "directory for session and local favorites")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Использование: reswap [флаги] <команда> [аргументы]\n\n")
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output(), "\n"+usage)
	}
	flag.Parse()

	if showVer {
		fmt.Printf("Reswap Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	session, err := client.LoadSession(dataDir)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки сессии: %v", err)
	}
	likes, err := favorites.Open(filepath.Join(dataDir, "favorites.db"))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer likes.Close()

	api := client.NewAPI(strings.TrimRight(baseURL, "/"))
	api.SetToken(session.Token)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{api: api, session: session, likes: likes}
	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		if len(args) < 2 {
			return errors.New("usage: register <email> <password> [username]")
		}
		username := ""
		if len(args) > 2 {
			username = args[2]
		}
		return watch(ctx, func(ctx context.Context) (*client.AuthResult, error) {
			return a.api.Register(ctx, args[0], args[1], username)
		}, a.saveAuth)

	case "login":
		if len(args) < 2 {
			return errors.New("usage: login <email> <password>")
		}
		return watch(ctx, func(ctx context.Context) (*client.AuthResult, error) {
			return a.api.Login(ctx, args[0], args[1])
		}, a.saveAuth)

	case "logout":
		return a.session.Clear()

	case "forgot":
		if len(args) < 1 {
			return errors.New("usage: forgot <email>")
		}
		return watch(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.api.ForgotPassword(ctx, args[0])
		}, func(struct{}) error {
			fmt.Println("Если email зарегистрирован, письмо со ссылкой для сброса отправлено")
			return nil
		})

	case "reset":
		if len(args) < 2 {
			return errors.New("usage: reset <token> <new-password>")
		}
		return watch(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.api.ResetPassword(ctx, args[0], args[1])
		}, func(struct{}) error {
			fmt.Println("Пароль изменен, войдите заново")
			return nil
		})

	case "profile":
		return a.profile(ctx, args)

	case "browse":
		return a.browse(ctx, args)

	case "show":
		id, err := parseID(args, "show <item-id>")
		if err != nil {
			return err
		}
		return watch(ctx, func(ctx context.Context) (*client.ItemDetail, error) {
			return a.api.GetItem(ctx, id)
		}, func(d *client.ItemDetail) error {
			liked, err := a.likes.Contains(ctx, a.session.DeviceID, id)
			if err != nil {
				return err
			}
			printItem(d.Item)
			fmt.Printf("  в избранном: %v, моя вещь: %v\n", liked, d.IsOwner)
			return nil
		})

	case "add":
		return a.add(ctx, args)

	case "delete":
		id, err := parseID(args, "delete <item-id>")
		if err != nil {
			return err
		}
		return watch(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.api.DeleteItem(ctx, id)
		}, func(struct{}) error {
			fmt.Println("Вещь удалена")
			return nil
		})

	case "my":
		return watch(ctx, a.api.MyItems, func(items []models.Item) error {
			for _, it := range items {
				printItem(it)
			}
			return nil
		})

	case "like", "unlike":
		id, err := parseID(args, cmd+" <item-id>")
		if err != nil {
			return err
		}
		if cmd == "like" {
			return a.likes.Add(ctx, a.session.DeviceID, id)
		}
		return a.likes.Remove(ctx, a.session.DeviceID, id)

	case "liked":
		list, err := a.likes.List(ctx, a.session.DeviceID)
		if err != nil {
			return err
		}
		for _, e := range list {
			fmt.Printf("%s  %s\n", e.ItemID, e.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil

	case "swap":
		if len(args) < 2 {
			return errors.New("usage: swap <their-item-id> <my-item-id> [message]")
		}
		target, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("неверный ID вещи: %w", err)
		}
		offered, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("неверный ID вещи: %w", err)
		}
		message := strings.Join(args[2:], " ")
		return watch(ctx, func(ctx context.Context) (*models.SwapRequest, error) {
			return a.api.CreateSwap(ctx, target, offered, message)
		}, func(r *models.SwapRequest) error {
			fmt.Printf("Запрос %s отправлен\n", r.ID)
			return nil
		})

	case "swaps":
		fs := flag.NewFlagSet("swaps", flag.ContinueOnError)
		direction := fs.String("type", "all", "incoming | outgoing | all")
		status := fs.String("status", "", "pending | swapped | rejected | canceled")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return watch(ctx, func(ctx context.Context) ([]models.SwapRequest, error) {
			return a.api.ListSwaps(ctx, *direction, *status)
		}, func(list []models.SwapRequest) error {
			return printJSON(list)
		})

	case "accept", "reject", "cancel":
		id, err := parseID(args, cmd+" <request-id>")
		if err != nil {
			return err
		}
		status := map[string]models.SwapStatus{
			"accept": models.SwapSwapped,
			"reject": models.SwapRejected,
			"cancel": models.SwapCanceled,
		}[cmd]
		return watch(ctx, func(ctx context.Context) (*models.SwapRequest, error) {
			return a.api.UpdateSwapStatus(ctx, id, status)
		}, func(r *models.SwapRequest) error {
			fmt.Printf("Запрос %s: %s\n", r.ID, r.Status)
			return nil
		})
	}

	return fmt.Errorf("неизвестная команда %q\n\n%s", cmd, usage)
}

func (a *app) saveAuth(res *client.AuthResult) error {
	a.session.Token = res.Token
	a.session.UserID = res.User.ID
	if err := a.session.Save(); err != nil {
		return err
	}
	fmt.Printf("Вы вошли как %s\n", res.User.Username)
	return nil
}

func (a *app) profile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	phone := fs.String("phone", "", "new phone")
	location := fs.String("location", "", "new location")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var upd struct{ phone, location *string }
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "phone":
			upd.phone = phone
		case "location":
			upd.location = location
		}
	})

	fetch := a.api.Profile
	if upd.phone != nil || upd.location != nil {
		fetch = func(ctx context.Context) (*models.User, error) {
			return a.api.UpdateProfile(ctx, upd.phone, upd.location)
		}
	}
	return watch(ctx, fetch, func(u *models.User) error { return printJSON(u) })
}

func (a *app) browse(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	var q client.ItemQuery
	all := fs.Bool("all", false, "include my own items")
	fs.StringVar(&q.Query, "q", "", "search text")
	fs.StringVar(&q.Category, "category", "", "category")
	fs.StringVar(&q.Condition, "condition", "", "condition")
	fs.StringVar(&q.Status, "status", "", "swap status")
	fs.IntVar(&q.Limit, "limit", 20, "page size")
	fs.IntVar(&q.Offset, "offset", 0, "page offset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q.ExcludeMine = !*all && a.session.Token != ""

	return watch(ctx, func(ctx context.Context) (*client.ItemPage, error) {
		return a.api.ListItems(ctx, q)
	}, func(page *client.ItemPage) error {
		for _, it := range page.Items {
			printItem(it)
		}
		fmt.Printf("Показано %d из %d\n", len(page.Items), page.Total)
		return nil
	})
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	var item client.NewItem
	fs.StringVar(&item.Name, "name", "", "item name")
	fs.StringVar(&item.Description, "description", "", "description")
	fs.StringVar(&item.Keywords, "keywords", "", "search keywords")
	fs.StringVar(&item.Category, "category", "other", "category")
	fs.StringVar(&item.Condition, "condition", "new", "condition")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if item.Name == "" {
		return errors.New("укажите -name")
	}
	item.Images = fs.Args()

	return watch(ctx, func(ctx context.Context) (*models.Item, error) {
		return a.api.CreateItem(ctx, item)
	}, func(it *models.Item) error {
		fmt.Printf("Вещь опубликована: %s\n", it.ID)
		return nil
	})
}

// watch выполняет вызов через client.Watch и печатает состояние загрузки
func watch[T any](ctx context.Context, fn func(context.Context) (T, error), done func(T) error) error {
	for r := range client.Watch(ctx, fn) {
		switch r.State {
		case client.StateLoading:
			fmt.Fprintln(os.Stderr, "…")
		case client.StateError:
			return errors.New(r.Message)
		case client.StateSuccess:
			return done(r.Data)
		}
	}
	return nil
}

func parseID(args []string, usage string) (uuid.UUID, error) {
	if len(args) < 1 {
		return uuid.Nil, errors.New("usage: " + usage)
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("неверный ID: %w", err)
	}
	return id, nil
}

func printItem(it models.Item) {
	fmt.Printf("%s  %-30s %-12s %-12s %s\n", it.ID, it.Name, it.Category, it.Condition, it.SwapStatus)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
