package domain

import (
	"testing"

	"github.com/IkramBagban/proxlay-sub001/internal/config"
)

const gb = int64(1) << 30

func basicLimits(t *testing.T) config.PlanLimits {
	t.Helper()
	limits, ok := config.DefaultPlanConfig().Limits("BASIC")
	if !ok {
		t.Fatal("missing BASIC limits")
	}
	return limits
}

func proLimits(t *testing.T) config.PlanLimits {
	t.Helper()
	limits, ok := config.DefaultPlanConfig().Limits("PRO")
	if !ok {
		t.Fatal("missing PRO limits")
	}
	return limits
}

func TestCanCreateWorkspace(t *testing.T) {
	basic := basicLimits(t)
	pro := proLimits(t)

	if !CanCreateWorkspace(basic, 0) {
		t.Fatal("BASIC with 0 workspaces should allow")
	}
	if CanCreateWorkspace(basic, 1) {
		t.Fatal("BASIC at its 1-workspace cap should deny")
	}
	if !CanCreateWorkspace(pro, 2) {
		t.Fatal("PRO with 2 workspaces should allow")
	}
	if CanCreateWorkspace(pro, 3) {
		t.Fatal("PRO at its 3-workspace cap should deny")
	}
}

func TestCanUploadVideo(t *testing.T) {
	basic := basicLimits(t)

	if !CanUploadVideo(basic, 19, 49*gb) {
		t.Fatal("19 uploads, 49GB should allow")
	}
	if CanUploadVideo(basic, 20, 49*gb) {
		t.Fatal("upload count at cap should deny")
	}
	if CanUploadVideo(basic, 10, 50*gb) {
		t.Fatal("storage bound alone should deny")
	}
	if CanUploadVideo(basic, 20, 50*gb) {
		t.Fatal("both bounds at cap should deny")
	}
}

func TestCanAddUserToWorkspace(t *testing.T) {
	basic := basicLimits(t)
	pro := proLimits(t)

	if !CanAddUserToWorkspace(basic, 4) {
		t.Fatal("BASIC with 4 members should allow")
	}
	if CanAddUserToWorkspace(basic, 5) {
		t.Fatal("BASIC at its 5-member cap should deny")
	}
	if !CanAddUserToWorkspace(pro, 9) {
		t.Fatal("PRO with 9 members should allow")
	}
	if CanAddUserToWorkspace(pro, 10) {
		t.Fatal("PRO at its 10-member cap should deny")
	}
}
