package summary

import (
	"context"
	"time"

	apperrors "go-medreport-scanner/internal/errors"
	"go-medreport-scanner/pkg/models"
)

// MockSummary is the fixed payload returned when no backend is configured
var MockSummary = models.Summary{
	English: "The mammography report indicates an abnormality in the left breast. A round, high-density mass with microlobulated margins is observed in the upper outer quadrant, measuring 5.5 x 5 cm. Few coarse and fine pleomorphic calcifications are noted within the mass. No microcalcifications are seen. The lymph nodes (axillary) appear normal. The findings are categorized as BIRADS 5, suggesting a high likelihood of malignancy. Biopsy and further evaluation and consultation with a specialist are recommended to confirm the diagnosis and decide on the next steps.",
	Hindi:   "मेमोग्राफी रिपोर्ट में बाईं स्तन में असामान्यता पाई गई है। ऊपरी बाहरी हिस्से में 5.5 x 5 सेमी का गोल, उच्च घनत्व वाला मास पाया गया है, जिसमें सूक्ष्म लोबुलेटेड किनारे हैं। मास के भीतर कुछ मोटे और महीन प्लियोमॉर्फिक कैल्सिफिकेशन देखे गए हैं। कोई सूक्ष्म कैल्सिफिकेशन नहीं देखा गया। लसीका ग्रंथि (एक्सिलरी) सामान्य दिख रही हैं। यह निष्कर्ष BIRADS श्रेणी 5 में आता है, जो कैंसर की उच्च संभावना को दर्शाता है। निदान की पुष्टि और अगले कदम तय करने के लिए बायोप्सी और विशेषज्ञ से परामर्श की सिफारिश की जाती है।",
}

// MockClient returns a fixed summary
type MockClient struct {
	Summary models.Summary
	// Delay simulates backend latency. Zero returns immediately.
	Delay time.Duration
}

// NewMockClient returns a mock that answers with MockSummary
func NewMockClient() *MockClient {
	return &MockClient{Summary: MockSummary}
}

// Generate implements Client
func (m *MockClient) Generate(ctx context.Context, _ models.EnhancedImage) (models.Summary, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return models.Summary{}, apperrors.NewNetworkError("Network error. Please check your connection.", ctx.Err())
		}
	}
	return m.Summary, nil
}
