package businessflow

import (
	"github.com/lib/pq"
	"github.com/phishguard/phishsim/app/dto"
	"github.com/phishguard/phishsim/models"
	"github.com/phishguard/phishsim/utils"
)

// specsFromDTO validates spec types up front so a bad spec fails at the API
// boundary rather than at resolution time
func specsFromDTO(specs []dto.TargetGroupSpecDTO) (models.TargetGroupSpecs, error) {
	out := make(models.TargetGroupSpecs, 0, len(specs))
	for _, s := range specs {
		specType := models.TargetGroupSpecType(s.Type)
		if !specType.Valid() {
			return nil, NewBusinessError("INVALID_SPEC_TYPE", "Invalid target spec type: "+s.Type, ErrInvalidSpecType)
		}
		out = append(out, models.TargetGroupSpec{Type: specType, Values: s.Values})
	}
	return out, nil
}

func specsToDTO(specs models.TargetGroupSpecs) []dto.TargetGroupSpecDTO {
	out := make([]dto.TargetGroupSpecDTO, 0, len(specs))
	for _, s := range specs {
		out = append(out, dto.TargetGroupSpecDTO{Type: string(s.Type), Values: s.Values})
	}
	return out
}

// settingsFromDTO builds settings starting from defaults. Tracking is on and
// credential capture is off unless the request says otherwise.
func settingsFromDTO(in *dto.CampaignSettingsDTO) models.CampaignSettings {
	settings := models.CampaignSettings{
		TrackOpens:         true,
		TrackClicks:        true,
		CaptureCredentials: false,
		SendRatePerHour:    utils.DefaultSendRatePerHour,
		RandomizeSendTimes: true,
	}
	applySettingsDTO(&settings, in)
	return settings
}

func applySettingsDTO(settings *models.CampaignSettings, in *dto.CampaignSettingsDTO) {
	if in == nil {
		return
	}
	if in.TrackOpens != nil {
		settings.TrackOpens = *in.TrackOpens
	}
	if in.TrackClicks != nil {
		settings.TrackClicks = *in.TrackClicks
	}
	if in.CaptureCredentials != nil {
		settings.CaptureCredentials = *in.CaptureCredentials
	}
	if in.SendRatePerHour != nil {
		settings.SendRatePerHour = *in.SendRatePerHour
	}
	if in.RandomizeSendTimes != nil {
		settings.RandomizeSendTimes = *in.RandomizeSendTimes
	}
	if in.TrainingRedirectURL != nil {
		settings.TrainingRedirectURL = *in.TrainingRedirectURL
	}
}

func settingsToDTO(s models.CampaignSettings) dto.CampaignSettingsDTO {
	out := dto.CampaignSettingsDTO{
		TrackOpens:         utils.ToPtr(s.TrackOpens),
		TrackClicks:        utils.ToPtr(s.TrackClicks),
		CaptureCredentials: utils.ToPtr(s.CaptureCredentials),
		SendRatePerHour:    utils.ToPtr(s.SendRatePerHour),
		RandomizeSendTimes: utils.ToPtr(s.RandomizeSendTimes),
	}
	if s.TrainingRedirectURL != "" {
		out.TrainingRedirectURL = utils.ToPtr(s.TrainingRedirectURL)
	}
	return out
}

func toInt64Array(ids []uint) pq.Int64Array {
	if len(ids) == 0 {
		return nil
	}
	out := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}

func fromInt64Array(ids pq.Int64Array) []uint {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		out = append(out, uint(id))
	}
	return out
}

func toCampaignResponse(c *models.Campaign) dto.CampaignResponse {
	return dto.CampaignResponse{
		UUID:            c.UUID.String(),
		Name:            c.Name,
		TemplateRef:     c.TemplateRef,
		Status:          string(c.Status),
		Specs:           specsToDTO(c.Specs),
		Settings:        settingsToDTO(c.Settings),
		ExcludedUserIDs: fromInt64Array(c.ExcludedUserIDs),
		ScheduledAt:     c.ScheduledAt,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}
