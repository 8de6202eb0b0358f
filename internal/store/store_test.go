package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/db"
	"github.com/suPer8Hu/agroguard/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Connect("sqlite", "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Second)
	}
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	st, err := New(context.Background(), openTestDB(t), opts...)
	require.NoError(t, err)
	return st
}

func f(v float64) *float64 { return &v }

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.GetSession(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.SetSession(ctx, models.Session{ID: "u_a", AccessCode: "AAAA"}))
	require.NoError(t, st.SetSession(ctx, models.Session{ID: "u_b", AccessCode: "BBBB", Plan: models.PlanPro, SubscriptionStatus: "active"}))

	got, err := st.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u_b", got.ID)
	assert.Equal(t, models.PlanPro, got.Plan)

	var count int64
	require.NoError(t, st.db.Model(&models.Session{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "only one current session")

	require.NoError(t, st.ClearSession(ctx))
	_, err = st.GetSession(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestThemeDefaultsToLight(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	th, err := st.GetTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ThemeLight, th)

	require.NoError(t, st.SetTheme(ctx, models.ThemeDark))
	th, err = st.GetTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ThemeDark, th)

	err = st.SetTheme(ctx, "sepia")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestProfileRoundTripIsFullOverwrite(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	first := models.FarmProfile{
		OwnerID:      "u_1",
		FarmName:     "Green Valley",
		Location:     "Northern Highlands",
		Latitude:     f(16.41),
		Longitude:    f(120.59),
		SizeHectares: 3.75,
		PrimaryCrops: []models.CropType{models.CropCorn, models.CropTomato},
	}
	require.NoError(t, st.SaveProfile(ctx, first))
	got, err := st.GetProfile(ctx, "u_1")
	require.NoError(t, err)
	if diff := cmp.Diff(first, *got); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}

	second := models.FarmProfile{
		OwnerID:      "u_1",
		FarmName:     "Green Valley Estate",
		PrimaryCrops: []models.CropType{models.CropRice},
	}
	require.NoError(t, st.SaveProfile(ctx, second))
	got, err = st.GetProfile(ctx, "u_1")
	require.NoError(t, err)
	if diff := cmp.Diff(second, *got); diff != "" {
		t.Fatalf("overwrite left merge artifacts (-want +got):\n%s", diff)
	}

	_, err = st.GetProfile(ctx, "u_other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListDetectionsNewestFirstPerOwner(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, WithClock(steppingClock(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))))

	var mine []string
	for i := 0; i < 5; i++ {
		owner := "u_me"
		if i%2 == 1 {
			owner = "u_them"
		}
		rec, err := st.AppendDetection(ctx, models.DetectionRecord{
			OwnerID:         owner,
			CropType:        models.CropTomato,
			DiseaseName:     "Early Blight",
			ConfidenceScore: 80,
			SeverityLevel:   models.SeverityMild,
		})
		require.NoError(t, err)
		if owner == "u_me" {
			mine = append(mine, rec.ID)
		}
	}

	list, err := st.ListDetections(ctx, "u_me")
	require.NoError(t, err)
	require.Len(t, list, len(mine))
	for i := range list {
		assert.Equal(t, "u_me", list[i].OwnerID)
		if i > 0 {
			assert.True(t, list[i-1].CreatedAt.After(list[i].CreatedAt), "not strictly descending at %d", i)
		}
	}
	assert.Equal(t, mine[len(mine)-1], list[0].ID)
}

func TestAppendDetectionAssignsIdentityAndClamps(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	in := models.DetectionRecord{
		ID:                 "caller-chosen",
		OwnerID:            "u_1",
		CropType:           models.CropPotato,
		DiseaseName:        "Late Blight",
		ConfidenceScore:    180,
		SeverityLevel:      models.SeveritySevere,
		SuggestedSolutions: []string{"Remove infected leaves", "Apply copper fungicide"},
		CitationLinks:      []models.Link{{Title: "Extension", URI: "https://example.org/late-blight"}},
	}
	rec, err := st.AppendDetection(ctx, in)
	require.NoError(t, err)
	assert.NotEqual(t, "caller-chosen", rec.ID)
	assert.Len(t, rec.ID, 26)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, 100.0, rec.ConfidenceScore)

	got, err := st.GetDetection(ctx, "u_1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.ConfidenceScore)
	assert.Equal(t, in.SuggestedSolutions, got.SuggestedSolutions)
	assert.Equal(t, in.CitationLinks, got.CitationLinks)

	_, err = st.GetDetection(ctx, "u_2", rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.AppendDetection(ctx, models.DetectionRecord{DiseaseName: "x"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestAppendDetectionReportsStorageError(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.Close())

	_, err := st.AppendDetection(ctx, models.DetectionRecord{OwnerID: "u_1", DiseaseName: "x"})
	assert.ErrorIs(t, err, common.ErrStorage)
}

func TestDeleteOwnerDataAndReset(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	for _, owner := range []string{"u_1", "u_2"} {
		require.NoError(t, st.SaveProfile(ctx, models.DefaultProfile(owner, "Farm "+owner)))
		_, err := st.AppendDetection(ctx, models.DetectionRecord{OwnerID: owner, DiseaseName: "Common Rust"})
		require.NoError(t, err)
	}

	require.NoError(t, st.DeleteOwnerData(ctx, "u_1"))
	_, err := st.GetProfile(ctx, "u_1")
	assert.ErrorIs(t, err, ErrNotFound)
	list, err := st.ListDetections(ctx, "u_1")
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = st.ListDetections(ctx, "u_2")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, st.SetTheme(ctx, models.ThemeDark))
	require.NoError(t, st.Reset(ctx))
	list, err = st.ListDetections(ctx, "u_2")
	require.NoError(t, err)
	assert.Empty(t, list)
	th, err := st.GetTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ThemeLight, th)
}

func TestNewRejectsNewerSchema(t *testing.T) {
	ctx := context.Background()
	gdb := openTestDB(t)

	st, err := New(ctx, gdb)
	require.NoError(t, err)
	require.NoError(t, st.putSetting(ctx, keySchemaVersion, "99"))

	_, err = New(ctx, gdb)
	assert.ErrorIs(t, err, common.ErrStorage)
}
