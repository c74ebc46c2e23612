package core

// Permission codes checked before each route runs. The token issuer grants
// them; ClaimLens only checks presence.
const (
	RightClaimLens               = 159000
	RightDocuments               = 159001
	RightExtractionResults       = 159002
	RightUpload                  = 159003
	RightProcess                 = 159004
	RightDocumentTypes           = 159005
	RightManageDocumentTypes     = 159006
	RightEngineConfigs           = 159007
	RightManageEngineConfigs     = 159008
	RightValidationResults       = 159009
	RightRunValidation           = 159010
	RightValidationRules         = 159011
	RightManageValidationRules   = 159012
	RightRegistryProposals       = 159013
	RightManageRegistryProposals = 159014
	RightCapabilityScores        = 159015
	RightManageCapabilityScores  = 159016
	RightRoutingPolicy           = 159017
	RightManageRoutingPolicy     = 159018
	RightModuleConfig            = 159019
	RightManageRoutingRules      = 159020
	RightRoutingRules            = 159021
	RightPromptTemplates         = 159022
	RightManagePromptTemplates   = 159023
	RightReviewExtraction        = 159024
)

// RightNames maps the RIGHT_CLAIMLENS_* names that may appear in tokens to their codes.
var RightNames = map[string]int{
	"RIGHT_CLAIMLENS":                           RightClaimLens,
	"RIGHT_CLAIMLENS_DOCUMENTS":                 RightDocuments,
	"RIGHT_CLAIMLENS_EXTRACTION_RESULTS":        RightExtractionResults,
	"RIGHT_CLAIMLENS_UPLOAD":                    RightUpload,
	"RIGHT_CLAIMLENS_PROCESS":                   RightProcess,
	"RIGHT_CLAIMLENS_DOCUMENT_TYPES":            RightDocumentTypes,
	"RIGHT_CLAIMLENS_MANAGE_DOCUMENT_TYPES":     RightManageDocumentTypes,
	"RIGHT_CLAIMLENS_ENGINE_CONFIGS":            RightEngineConfigs,
	"RIGHT_CLAIMLENS_MANAGE_ENGINE_CONFIGS":     RightManageEngineConfigs,
	"RIGHT_CLAIMLENS_VALIDATION_RESULTS":        RightValidationResults,
	"RIGHT_CLAIMLENS_RUN_VALIDATION":            RightRunValidation,
	"RIGHT_CLAIMLENS_VALIDATION_RULES":          RightValidationRules,
	"RIGHT_CLAIMLENS_MANAGE_VALIDATION_RULES":   RightManageValidationRules,
	"RIGHT_CLAIMLENS_REGISTRY_PROPOSALS":        RightRegistryProposals,
	"RIGHT_CLAIMLENS_MANAGE_REGISTRY_PROPOSALS": RightManageRegistryProposals,
	"RIGHT_CLAIMLENS_CAPABILITY_SCORES":         RightCapabilityScores,
	"RIGHT_CLAIMLENS_MANAGE_CAPABILITY_SCORES":  RightManageCapabilityScores,
	"RIGHT_CLAIMLENS_ROUTING_POLICY":            RightRoutingPolicy,
	"RIGHT_CLAIMLENS_MANAGE_ROUTING_POLICY":     RightManageRoutingPolicy,
	"RIGHT_CLAIMLENS_MODULE_CONFIG":             RightModuleConfig,
	"RIGHT_CLAIMLENS_MANAGE_ROUTING_RULES":      RightManageRoutingRules,
	"RIGHT_CLAIMLENS_ROUTING_RULES":             RightRoutingRules,
	"RIGHT_CLAIMLENS_PROMPT_TEMPLATES":          RightPromptTemplates,
	"RIGHT_CLAIMLENS_MANAGE_PROMPT_TEMPLATES":   RightManagePromptTemplates,
	"RIGHT_CLAIMLENS_REVIEW_EXTRACTION":         RightReviewExtraction,
}
