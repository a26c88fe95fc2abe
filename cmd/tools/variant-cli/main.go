package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/annel0/blockbase/internal/item"
	"github.com/annel0/blockbase/internal/storage"
	"github.com/annel0/blockbase/internal/world"
	"github.com/annel0/blockbase/internal/world/block"
	"github.com/annel0/blockbase/internal/world/block/implementations"
	"github.com/ethaniccc/float32-cube/cube"
)

const usage = `Использование: variant-cli [флаги] <команда> [аргументы]

Команды:
  get <x> <y> <z>            вариант блока в позиции
  set <x> <y> <z> <variant>  поставить вариант
  del <x> <y> <z>            удалить блок
  dump                       вывести все блоки
  export <file>              выгрузить варианты в zstd архив
  import <file>              загрузить архив
  seed <seed> <radius> <y>   заполнить слой шумом Перлина
  variants                   встроенные варианты и имена предметов
`

func main() {
	var (
		backend = flag.String("backend", storage.BackendBadger, "Backend: memory, badger, redis, maria, mongo")
		path    = flag.String("path", "data", "Badger data directory")
		dsn     = flag.String("maria-dsn", "", "MariaDB DSN")
		mongo   = flag.String("mongo-uri", "", "MongoDB URI")
		redis   = flag.String("redis-addr", "", "Redis address")
		timeout = flag.Duration("timeout", 30*time.Second, "Operation timeout")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if args[0] == "variants" {
		showVariants()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg := storage.Config{
		Backend:  *backend,
		Path:     *path,
		Redis:    *storage.DefaultRedisConfig(),
		MariaDSN: *dsn,
	}
	if *mongo != "" {
		cfg.Mongo.URI = *mongo
	}
	if *redis != "" {
		cfg.Redis.Addr = *redis
	}
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open store: %v", err)
	}
	defer store.Close()

	if err := run(ctx, store, args[0], args[1:]); err != nil {
		log.Fatalf("❌ %s failed: %v", args[0], err)
	}
}

func run(ctx context.Context, store storage.VariantStore, cmd string, args []string) error {
	switch cmd {
	case "get":
		pos, err := parsePos(args, 3)
		if err != nil {
			return err
		}
		id, ok, err := store.Load(ctx, pos)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("%v: пусто\n", pos)
			return nil
		}
		fmt.Printf("%v: %d\n", pos, id)

	case "set":
		pos, err := parsePos(args, 4)
		if err != nil {
			return err
		}
		v, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("вариант %q: %w", args[3], err)
		}
		return store.Save(ctx, pos, block.VariantID(v))

	case "del":
		pos, err := parsePos(args, 3)
		if err != nil {
			return err
		}
		return store.Delete(ctx, pos)

	case "dump":
		n := 0
		err := store.Scan(ctx, func(pos cube.Pos, id block.VariantID) error {
			fmt.Printf("%d %d %d %d\n", pos.X(), pos.Y(), pos.Z(), id)
			n++
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "📦 Total: %d\n", n)

	case "export":
		if len(args) != 1 {
			return fmt.Errorf("export: нужен путь к файлу")
		}
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		n, err := storage.Export(ctx, store, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Printf("✅ Exported %d variants to %s\n", n, args[0])

	case "import":
		if len(args) != 1 {
			return fmt.Errorf("import: нужен путь к файлу")
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		n, err := storage.Import(ctx, store, f)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Imported %d variants from %s\n", n, args[0])

	case "seed":
		nums, err := parseInts(args, 3)
		if err != nil {
			return err
		}
		seed, r, y := nums[0], nums[1], nums[2]
		w := world.New(world.Options{Store: store})
		gen := world.NewGenerator(int64(seed), implementations.SeedLayers())
		n, err := gen.Populate(ctx, w, cube.Pos{-r, y, -r}, cube.Pos{r, y, r})
		if err != nil {
			return err
		}
		fmt.Printf("🌱 Seeded %d blocks\n", n)

	default:
		flag.Usage()
		return fmt.Errorf("неизвестная команда %q", cmd)
	}
	return nil
}

// showVariants печатает встроенные варианты в порядке регистрации
func showVariants() {
	names := item.NewNameTable()
	reg := block.NewRegistry(implementations.MinCapacity, block.WithItemNamer(names))
	if err := implementations.RegisterAll(reg); err != nil {
		log.Fatalf("❌ %v", err)
	}
	for _, e := range names.Entries() {
		desc, _ := reg.Lookup(e.Variant)
		fmt.Printf("%3d  %-10s %s\n", e.Variant, desc.Type.Name, e.Name)
	}
}

func parsePos(args []string, want int) (cube.Pos, error) {
	nums, err := parseInts(args, want)
	if err != nil {
		return cube.Pos{}, err
	}
	return cube.Pos{nums[0], nums[1], nums[2]}, nil
}

func parseInts(args []string, want int) ([]int, error) {
	if len(args) != want {
		return nil, fmt.Errorf("ожидалось %d аргументов, получено %d", want, len(args))
	}
	out := make([]int, 0, want)
	for _, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("аргумент %q: %w", a, err)
		}
		out = append(out, v)
	}
	return out, nil
}
