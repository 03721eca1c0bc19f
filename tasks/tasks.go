package tasks

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"fitrateapi/models"
	"fitrateapi/services"
)

const TypeOutfitAnalysis = "analysis:outfit"

type OutfitAnalysisPayload struct {
	OutfitID uint `json:"outfit_id"`
}

// NewClient initializes an asynq client for enqueuing tasks
func NewClient() (*asynq.Client, error) {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}), nil
}

func NewOutfitAnalysisTask(outfitID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(OutfitAnalysisPayload{OutfitID: outfitID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeOutfitAnalysis, payload), nil
}

func getOutfitImage(awsService services.AWSServiceProvider, outfit models.SavedOutfit) ([]byte, error) {
	bucketName := os.Getenv("R2_BUCKET_NAME")
	if outfit.ImageURL == nil {
		return nil, fmt.Errorf("[Outfit: %v] Image key is nil", outfit.ID)
	}
	fileUrl, err := awsService.GetPresignedR2FileReadURL(context.TODO(), bucketName, *outfit.ImageURL)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Outfit: %v] Error on getting presigned URL for file %s", outfit.ID, *outfit.ImageURL))
		return nil, err
	}
	fileBytes, err := services.ReadFileFromUrl(fileUrl)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Outfit: %v] Error on downloading file %s: %v", outfit.ID, *outfit.ImageURL, err))
		return nil, err
	}
	return fileBytes, nil
}

func saveOutfitAnalysisFail(db *gorm.DB, outfit models.SavedOutfit, msg string, shouldRetry bool) error {
	outfit.AnalysisRetryTimes = outfit.AnalysisRetryTimes + 1
	outfit.AnalysisErrorMessage = &msg
	if !shouldRetry || outfit.AnalysisRetryTimes >= 3 {
		outfit.AnalysisStatus = "failed"
	}
	tx := db.Omit("alert_when_processed").Save(&outfit)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Fail Outfit %v] Error on saving outfit for failed status", outfit.ID))
		return tx.Error
	}
	return nil
}

// HandleOutfitAnalysisTask downloads the saved outfit image, runs the
// structured analysis and writes the result back onto the outfit row.
func HandleOutfitAnalysisTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, analyzer services.AnalysisProvider,
	awsService services.AWSServiceProvider, fbApp *firebase.App) error {
	if !analyzer.Configured() {
		sentry.CaptureException(fmt.Errorf("[QUEUE] %s Analysis provider is not configured", string(t.Payload())))
		return fmt.Errorf("[QUEUE] %s Analysis provider is not configured", string(t.Payload()))
	}
	var payload OutfitAnalysisPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Outfit: %v] Start Processing\n", payload.OutfitID)

	var outfit models.SavedOutfit
	res := db.First(&outfit, payload.OutfitID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving outfit for processing %v", payload.OutfitID))
		return res.Error
	}
	if outfit.ImageStatus != "uploaded" {
		saveOutfitAnalysisFail(db, outfit, "Outfit image was never uploaded, please save the outfit again", false)
		return nil
	}

	fileBytes, err := getOutfitImage(awsService, outfit)
	if err != nil {
		saveOutfitAnalysisFail(db, outfit, "Failed to read the outfit image, please save the outfit again", true)
		return err
	}
	fmt.Printf("[Outfit: %v] Downloaded file size: %d bytes\n", payload.OutfitID, len(fileBytes))

	mediaType := services.NormalizeAnalysisMediaType(http.DetectContentType(fileBytes))
	imageBase64 := base64.StdEncoding.EncodeToString(fileBytes)

	var prefs *services.UserPreferences
	var profile models.StyleProfile
	if r := db.Where("user_account_id = ?", outfit.OwnerID).First(&profile); r.Error == nil {
		prefs = &services.UserPreferences{
			FavoriteColors:  profile.FavoriteColors,
			PreferredStyles: profile.PreferredStyles,
			FavoriteBrands:  profile.FavoriteBrands,
		}
	}

	result, err := analyzer.AnalyzeOutfit(ctx, imageBase64, mediaType, services.BuildAnalysisPrompt(prefs))
	if err != nil {
		fmt.Printf("[Outfit: %v] Error on analyzing image: %v\n", payload.OutfitID, err)
		saveOutfitAnalysisFail(db, outfit, "Sorry, we failed to analyze this outfit, please try again", true)
		sentry.CaptureException(fmt.Errorf("[Outfit: %v] Error on analyzing image: %v", payload.OutfitID, err))
		return err
	}

	cleanContent := services.StripMarkdownFences(result.Response)
	fmt.Printf("[Outfit: %v] LLM Processed, IT: %d, OT: %d, TT: %d\n", payload.OutfitID, result.InputTokenCount, result.OutputTokenCount, result.TotalTokenCount)
	var analysis models.OutfitAnalysis
	if err := json.Unmarshal([]byte(cleanContent), &analysis); err != nil {
		fmt.Printf("[Outfit: %v] Error on parsing analysis json %s\n", payload.OutfitID, result.Response)
		saveOutfitAnalysisFail(db, outfit, "Failed to read the analysis result, please try again later", true)
		sentry.CaptureException(fmt.Errorf("[Outfit: %v] Error on parsing analysis json %s", payload.OutfitID, result.Response))
		return err
	}
	if !analysis.Valid() {
		fmt.Printf("[Outfit: %v] Analysis scores out of range %s\n", payload.OutfitID, cleanContent)
		saveOutfitAnalysisFail(db, outfit, "Failed to read the analysis result, please try again later", true)
		return fmt.Errorf("[Outfit: %v] Analysis scores out of range", payload.OutfitID)
	}

	outfit.AnalysisJSON = &cleanContent
	outfit.AnalysisStatus = "completed"
	outfit.AnalysisErrorMessage = nil
	modelString := "analysis"
	outfit.LLMModel = &modelString
	outfit.LLMInputTokenCount = &result.InputTokenCount
	outfit.LLMOutputTokenCount = &result.OutputTokenCount
	tx := db.Omit("alert_when_processed").Save(&outfit)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on saving outfit %v", payload.OutfitID))
		return tx.Error
	}
	fmt.Printf("[Outfit: %v] Analysis finished succesfully..\n", payload.OutfitID)

	ownerID := outfit.OwnerID
	usage := models.UsageLog{UserAccountID: &ownerID, ActionType: "analysis"}
	if err := db.Create(&usage).Error; err != nil {
		fmt.Printf("[Outfit: %v] Error logging usage: %v\n", payload.OutfitID, err)
	}

	if outfit.AlertWhenProcessed {
		fmt.Printf("[Outfit: %v] Sending notification to user %v\n", payload.OutfitID, outfit.OwnerID)
		services.SendNotification(fbApp, db, outfit.OwnerID, "Outfit Analysis Completed", fmt.Sprintf("Your outfit %s has been analyzed", outfit.Name), map[string]string{"outfit_id": fmt.Sprintf("%d", outfit.ID), "type": "outfit_analyzed"})
	} else {
		fmt.Printf("[Outfit: %v] AlertWhenProcessed is false, not sending notification to user %v\n", payload.OutfitID, outfit.OwnerID)
	}
	return nil
}
