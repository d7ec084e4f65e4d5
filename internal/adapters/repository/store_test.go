package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/couplepet/internal/adapters/repository"
	"github.com/okian/couplepet/internal/domain/petstate"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// samplePet returns a pet with history and a set partner action.
func samplePet() petstate.PetState {
	engine := petstate.NewEngine()
	pet := petstate.NewDefault(t0)
	pet, _ = engine.ApplyAction(pet, petstate.Partner2, petstate.ActionClean, t0.Add(time.Hour), true)
	pet = engine.ApplyCoupleActivity(pet, petstate.ActivityGroom, t0.Add(2*time.Hour))
	pet.Name = "Biscuit"
	return pet
}

// storeContract runs the behaviour every Store must share.
func storeContract(open func() repository.Store) {
	ctx := context.Background()

	Convey("When nothing was saved yet", func() {
		st := open()
		defer st.Close()

		_, err := st.Load(ctx)

		Convey("Then Load reports ErrNotFound", func() {
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("And LoadOrCreateDefault persists the default pet", func() {
			pet, created, err := repository.LoadOrCreateDefault(ctx, st, t0)
			So(err, ShouldBeNil)
			So(created, ShouldBeTrue)
			So(pet.Name, ShouldEqual, petstate.DefaultName)
			So(pet.LastUpdated.Equal(t0), ShouldBeTrue)

			again, created, err := repository.LoadOrCreateDefault(ctx, st, t0.Add(time.Hour))
			So(err, ShouldBeNil)
			So(created, ShouldBeFalse)
			So(again.CreatedDate.Equal(t0), ShouldBeTrue)
		})
	})

	Convey("When a pet is saved", func() {
		st := open()
		defer st.Close()

		pet := samplePet()
		So(st.Save(ctx, pet), ShouldBeNil)

		Convey("Then Load returns an equivalent pet", func() {
			got, err := st.Load(ctx)
			So(err, ShouldBeNil)
			So(got.Name, ShouldEqual, "Biscuit")
			So(got.Cleanliness, ShouldEqual, pet.Cleanliness)
			So(got.Happiness, ShouldEqual, pet.Happiness)
			So(got.Partner2.Streak, ShouldEqual, 1)
			So(got.Partner2.LastAction.Equal(*pet.Partner2.LastAction), ShouldBeTrue)
			So(got.Partner1.LastAction, ShouldBeNil)
			So(got.CoupleActivitiesCompleted, ShouldEqual, 2)
			So(got.LastUpdated.Equal(pet.LastUpdated), ShouldBeTrue)
			So(got.ActionHistory, ShouldHaveLength, 2)
			So(got.ActionHistory[1].Action, ShouldEqual, "couple_groom")
		})

		Convey("And a second save replaces the first", func() {
			pet.Name = "Pudding"
			So(st.Save(ctx, pet), ShouldBeNil)
			got, err := st.Load(ctx)
			So(err, ShouldBeNil)
			So(got.Name, ShouldEqual, "Pudding")
		})
	})
}

func TestMemoryStore(t *testing.T) {
	Convey("Given a memory store", t, func() {
		storeContract(func() repository.Store { return repository.NewMemoryStore() })

		Convey("When the caller mutates a loaded pet", func() {
			st := repository.NewMemoryStore()
			So(st.Save(context.Background(), samplePet()), ShouldBeNil)
			got, _ := st.Load(context.Background())
			got.ActionHistory[0].Action = "mutated"

			Convey("Then the stored copy is unchanged", func() {
				again, _ := st.Load(context.Background())
				So(again.ActionHistory[0].Action, ShouldEqual, petstate.ActionClean)
			})
		})

		Convey("When it is closed", func() {
			st := repository.NewMemoryStore()
			So(st.Close(), ShouldBeNil)

			Convey("Then further use fails", func() {
				_, err := st.Load(context.Background())
				So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
				So(errors.Is(st.Save(context.Background(), samplePet()), repository.ErrClosed), ShouldBeTrue)
			})
		})
	})
}

func TestFileStore(t *testing.T) {
	Convey("Given a file store in a temp directory", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "pet_data.json")

		storeContract(func() repository.Store {
			st, err := repository.NewFileStore(path)
			So(err, ShouldBeNil)
			return st
		})

		Convey("When a pet is saved to the file", func() {
			st, err := repository.NewFileStore(path)
			So(err, ShouldBeNil)
			So(st.Save(context.Background(), samplePet()), ShouldBeNil)

			Convey("Then no temp files are left behind", func() {
				entries, err := os.ReadDir(filepath.Dir(path))
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 1)
				So(entries[0].Name(), ShouldEqual, "pet_data.json")
			})
		})

		Convey("When the file holds a legacy record with naive timestamps", func() {
			petstate.SetNaiveLocation(time.UTC)
			Reset(func() { petstate.SetNaiveLocation(nil) })
			legacy := `{"name": "Fluffy", "species": "Floof", "happiness": 50, "health": 50,
				"hunger": 50, "cleanliness": 50, "partner1_name": "Partner 1", "partner2_name": "Partner 2",
				"partner1_last_action": null, "partner2_last_action": null, "partner1_streak": 0,
				"partner2_streak": 0, "couple_activities_completed": 0,
				"created_date": "2024-03-01T09:00:00.123456", "last_updated": "2024-03-01T09:00:00.123456",
				"action_history": []}`
			So(os.MkdirAll(filepath.Dir(path), 0o755), ShouldBeNil)
			So(os.WriteFile(path, []byte(legacy), 0o644), ShouldBeNil)

			st, err := repository.NewFileStore(path)
			So(err, ShouldBeNil)
			got, err := st.Load(context.Background())

			Convey("Then it loads", func() {
				So(err, ShouldBeNil)
				So(got.LastUpdated.Equal(t0.Add(123456*time.Microsecond)), ShouldBeTrue)
			})
		})

		Convey("When the file is corrupt", func() {
			So(os.MkdirAll(filepath.Dir(path), 0o755), ShouldBeNil)
			So(os.WriteFile(path, []byte("{not json"), 0o644), ShouldBeNil)

			st, err := repository.NewFileStore(path)
			So(err, ShouldBeNil)
			_, err = st.Load(context.Background())

			Convey("Then Load fails without pretending the pet is new", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeFalse)
			})
		})
	})
}

func TestSQLiteStore(t *testing.T) {
	Convey("Given a sqlite store", t, func() {
		dir := t.TempDir()
		storeContract(func() repository.Store {
			st, err := repository.OpenSQLite(context.Background(), filepath.Join(dir, "pet.db"))
			So(err, ShouldBeNil)
			return st
		})
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("COUPLEPET_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("COUPLEPET_TEST_POSTGRES_DSN not set")
	}

	Convey("Given a postgres store", t, func() {
		storeContract(func() repository.Store {
			st, err := repository.OpenPostgres(context.Background(), dsn)
			So(err, ShouldBeNil)

			db, err := sql.Open("pgx", dsn)
			So(err, ShouldBeNil)
			_, err = db.Exec(`DELETE FROM pet_state`)
			So(err, ShouldBeNil)
			So(db.Close(), ShouldBeNil)
			return st
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given the store factory", t, func() {
		ctx := context.Background()

		Convey("When an unknown driver is requested", func() {
			_, err := repository.Open(ctx, "redis")

			Convey("Then ErrUnknownDriver is returned", func() {
				So(errors.Is(err, repository.ErrUnknownDriver), ShouldBeTrue)
			})
		})

		Convey("When postgres is requested without a dsn", func() {
			_, err := repository.Open(ctx, repository.DriverPostgres)

			Convey("Then it fails", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When each local driver is opened", func() {
			dir := t.TempDir()
			for _, driver := range []string{repository.DriverMemory, repository.DriverFile, repository.DriverSQLite} {
				st, err := repository.Open(ctx, driver,
					repository.WithDataFile(filepath.Join(dir, "pet.json")),
					repository.WithSQLitePath(filepath.Join(dir, "pet.db")),
				)
				So(err, ShouldBeNil)

				pet, created, err := repository.LoadOrCreateDefault(ctx, st, t0)
				So(err, ShouldBeNil)
				So(created, ShouldBeTrue)
				So(pet.Species, ShouldEqual, petstate.DefaultSpecies)
				So(st.Close(), ShouldBeNil)
			}
		})
	})
}
