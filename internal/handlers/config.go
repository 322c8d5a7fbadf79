package handlers

import (
	"github.com/estatecart/commerce/internal/aws"
	"github.com/estatecart/commerce/internal/config"
	"go.uber.org/zap"
)

// HandlerConfig groups dependencies for the HTTP handlers.
type HandlerConfig struct {
	DynamoDBClient   aws.DynamoDBAPI
	SQSClient        aws.SQSAPI
	CloudWatchClient aws.CloudWatchAPI
	Logger           *zap.Logger
	Config           config.Config
}
