package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// bedrockAPI is the subset of the Bedrock runtime client the provider uses
type bedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

// BedrockProvider implements the Provider interface for AWS Bedrock
type BedrockProvider struct {
	client bedrockAPI
	model  string
	region string
	opts   Options
}

// NewBedrockProvider creates a new AWS Bedrock provider
func NewBedrockProvider(ctx context.Context, region, model string, opts Options) (*BedrockProvider, error) {
	if region == "" {
		region = "us-east-1" // Default region
	}
	if model == "" {
		model = "anthropic.claude-3-5-sonnet-20241022-v2:0" // Default model
	}

	// Load AWS credentials from environment/IAM role
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockProvider{
		client: bedrockruntime.NewFromConfig(cfg),
		model:  model,
		region: region,
		opts:   opts.withDefaults(),
	}, nil
}

// Name returns the provider name
func (p *BedrockProvider) Name() string {
	return fmt.Sprintf("AWS Bedrock (%s)", p.model)
}

// Bedrock request/response structures (using Claude's format on Bedrock)
type bedrockClaudeRequest struct {
	System           string    `json:"system,omitempty"`
	Messages         []Message `json:"messages"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	AnthropicVersion string    `json:"anthropic_version"`
}

type bedrockClaudeResponse struct {
	Content []anthropicContentBlock `json:"content"`
}

type bedrockChunk struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func (p *BedrockProvider) body(messages []Message) ([]byte, error) {
	system, rest := splitSystem(messages)
	jsonData, err := json.Marshal(bedrockClaudeRequest{
		System:           system,
		Messages:         rest,
		MaxTokens:        p.opts.MaxTokens,
		Temperature:      p.opts.Temperature,
		AnthropicVersion: "bedrock-2023-05-31",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return jsonData, nil
}

// wrapBedrockError surfaces HTTP failures as *APIError
func wrapBedrockError(err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return &APIError{Provider: "Bedrock", StatusCode: re.HTTPStatusCode(), Body: re.Error()}
	}
	return fmt.Errorf("failed to call Bedrock API: %w", err)
}

// Complete performs a blocking InvokeModel call
func (p *BedrockProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	jsonData, err := p.body(messages)
	if err != nil {
		return "", err
	}

	resp, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        jsonData,
	})
	if err != nil {
		return "", wrapBedrockError(err)
	}

	var bedrockResp bedrockClaudeResponse
	if err := json.Unmarshal(resp.Body, &bedrockResp); err != nil {
		return "", fmt.Errorf("failed to decode Bedrock response: %w", err)
	}

	var text strings.Builder
	for _, block := range bedrockResp.Content {
		text.WriteString(block.Text)
	}
	if text.Len() == 0 {
		return FallbackReply, nil
	}
	return text.String(), nil
}

// Stream uses InvokeModelWithResponseStream
func (p *BedrockProvider) Stream(ctx context.Context, messages []Message) (*Stream, error) {
	jsonData, err := p.body(messages)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(p.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        jsonData,
	})
	if err != nil {
		return nil, wrapBedrockError(err)
	}

	events := resp.GetStream()
	recv := func() (string, error) {
		for {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case event, ok := <-events.Events():
				if !ok {
					if err := events.Err(); err != nil {
						return "", err
					}
					return "", io.EOF
				}
				chunk, isChunk := event.(*brtypes.ResponseStreamMemberChunk)
				if !isChunk {
					continue
				}

				var chunkResp bedrockChunk
				if err := json.Unmarshal(chunk.Value.Bytes, &chunkResp); err != nil {
					continue
				}
				switch chunkResp.Type {
				case "content_block_delta":
					if chunkResp.Delta.Text != "" {
						return chunkResp.Delta.Text, nil
					}
				case "message_stop":
					return "", io.EOF
				}
			}
		}
	}
	return NewStream(ctx, recv, events), nil
}
