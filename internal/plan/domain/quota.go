package domain

import "github.com/IkramBagban/proxlay-sub001/internal/config"

const bytesPerGB = int64(1) << 30

// CanCreateWorkspace reports whether one more workspace fits under the plan.
func CanCreateWorkspace(limits config.PlanLimits, currentWorkspaceCount int64) bool {
	return currentWorkspaceCount < int64(limits.MaxWorkspace)
}

// CanUploadVideo requires headroom on both the upload count and the storage
// ceiling; either bound alone blocks.
func CanUploadVideo(limits config.PlanLimits, currentVideoUploads, currentStorageUsedBytes int64) bool {
	return currentVideoUploads < int64(limits.MaxVideoUploads) &&
		currentStorageUsedBytes < limits.MaxStorageGB*bytesPerGB
}

// CanAddUserToWorkspace reports whether the workspace has room for one more
// member.
func CanAddUserToWorkspace(limits config.PlanLimits, currentWorkspaceUserCount int64) bool {
	return currentWorkspaceUserCount < int64(limits.MaxUserPerWorkspace)
}
